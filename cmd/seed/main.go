// Command seed populates the database with sample political parties for
// local development. Each party gets its own seed user and profile.
// Seeding is skipped when active parties already exist.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	appserver "github.com/worldrepublic/republic/internal/app/server"
	"github.com/worldrepublic/republic/internal/platform/config"
	"github.com/worldrepublic/republic/internal/storage"
)

type sampleParty struct {
	name        string
	description string
	websiteURL  string
}

var sampleParties = []sampleParty{
	{"Sample: Global Democratic Alliance", "[SAMPLE PARTY] A coalition dedicated to promoting democratic values, human rights, and transparent governance worldwide.", "https://example.org"},
	{"Sample: United Progressive Front", "[SAMPLE PARTY] Advocating for progressive policies, social justice, and sustainable development.", "https://example.org"},
	{"Sample: Centrist Coalition", "[SAMPLE PARTY] A moderate political movement focused on pragmatic solutions, economic stability, and balanced governance.", "https://example.org"},
	{"Sample: Green Future Party", "[SAMPLE PARTY] Committed to environmental protection, climate action, and sustainable living.", "https://example.org"},
	{"Sample: Digital Rights Movement", "[SAMPLE PARTY] Fighting for digital freedom, privacy rights, and open access to information.", "https://example.org"},
	{"Sample: Economic Justice League", "[SAMPLE PARTY] Working to reduce inequality, ensure fair wages, and create economic opportunities for all.", "https://example.org"},
	{"Sample: Cultural Unity Party", "[SAMPLE PARTY] Promoting cultural diversity, intercultural dialogue, and mutual understanding.", "https://example.org"},
	{"Sample: Innovation & Progress Alliance", "[SAMPLE PARTY] Focused on technological advancement, scientific research, and innovation-driven growth.", "https://example.org"},
	{"Sample: Peace & Cooperation Network", "[SAMPLE PARTY] Dedicated to conflict resolution, international cooperation, and building lasting peace.", "https://example.org"},
	{"Sample: Workers Solidarity Union", "[SAMPLE PARTY] Standing with workers' rights, fair labor practices, and social protection.", "https://example.org"},
}

var seedUserNames = []string{
	"Alex Chen", "Maria Rodriguez", "James Wilson", "Sarah Johnson",
	"David Kim", "Emma Thompson", "Michael Brown", "Lisa Anderson",
	"Robert Taylor", "Jennifer Martinez",
}

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Fatalf("load .env: %v", err)
	}

	var cfg appserver.Config
	if err := config.ParseEnv(&cfg); err != nil {
		config.Exitf("parse environment: %v", err)
	}

	ctx := context.Background()
	store, err := appserver.OpenStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Printf("close store: %v", err)
		}
	}()

	if err := seedParties(ctx, store); err != nil {
		log.Fatalf("seed parties: %v", err)
	}
}

func seedParties(ctx context.Context, store storage.Store) error {
	existing, err := store.ListParties(ctx, storage.PartyFilters{Limit: 1})
	if err != nil {
		return fmt.Errorf("list parties: %w", err)
	}
	if len(existing) > 0 {
		log.Printf("active parties already exist, skipping seed")
		return nil
	}

	now := time.Now().UTC()
	for i, sample := range sampleParties {
		username := fmt.Sprintf("seed_citizen_%d", i+1)

		founder, err := store.GetProfileByUsername(ctx, username)
		if err != nil {
			user, createErr := store.CreateUser(ctx, storage.User{
				UUID:  uuid.NewString(),
				Name:  seedUserNames[i],
				Email: fmt.Sprintf("seed-user-%d@example.com", i+1),
			})
			if createErr != nil {
				return fmt.Errorf("create seed user %q: %w", username, createErr)
			}
			founder = storage.Profile{
				UserUUID:   user.UUID,
				AuthUserID: user.ID,
				Username:   username,
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			if err := store.CreateProfile(ctx, founder); err != nil {
				return fmt.Errorf("create seed profile %q: %w", username, err)
			}
		}

		if err := store.CreateParty(ctx, storage.Party{
			ID:             uuid.NewString(),
			Name:           sample.name,
			Description:    sample.description,
			WebsiteURL:     sample.websiteURL,
			FoundedBy:      founder.UserUUID,
			LeaderUsername: founder.Username,
			CreatedAt:      now,
			UpdatedAt:      now,
		}); err != nil {
			return fmt.Errorf("create party %q: %w", sample.name, err)
		}
		log.Printf("seeded party %q led by %s", sample.name, founder.Username)
	}
	return nil
}
