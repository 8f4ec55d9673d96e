// Package seed provides helpers to create test and demo data for the
// application database. These helpers are intended for development and
// testing only.
package seed

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"matehub/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	NumUsers    int
	ShouldClean bool
}

// Seeder builds domain entities and persists them to the database.
type Seeder struct {
	db   *gorm.DB
	rand *rand.Rand
}

// NewSeeder creates a new Seeder bound to the provided Gorm DB.
func NewSeeder(db *gorm.DB) *Seeder {
	gofakeit.Seed(time.Now().UnixNano())
	return &Seeder{
		db:   db,
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// ClearAll removes all seeded data. Order matters for foreign keys.
func (s *Seeder) ClearAll() error {
	log.Println("Clearing existing data...")
	tables := []string{
		"messages",
		"conversation_participants",
		"conversations",
		"notifications",
		"mate_requests",
		"mates",
		"follows",
		"users",
	}
	for _, table := range tables {
		if err := s.db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// CreateUser constructs and persists a sample user. Optional override
// functions may modify the generated user before saving.
func (s *Seeder) CreateUser(overrides ...func(*models.User)) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	steamID := fmt.Sprintf("7656119%09d", gofakeit.Number(100000000, 999999999))
	user := &models.User{
		Username: gofakeit.Username() + fmt.Sprintf("%d", gofakeit.Number(100, 999)),
		Email:    gofakeit.Email(),
		Password: string(hashedPassword),
		Bio:      gofakeit.Sentence(10),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", gofakeit.UUID()),
		SteamID:  &steamID,
	}

	for _, override := range overrides {
		override(user)
	}

	if err := s.db.Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// SeedSocialGraph creates users, follow edges, in-flight mate requests at
// assorted progress levels, and some promoted mates.
func (s *Seeder) SeedSocialGraph(numUsers int) ([]*models.User, error) {
	log.Printf("Seeding %d users...", numUsers)

	users := make([]*models.User, 0, numUsers)
	for i := 0; i < numUsers; i++ {
		user, err := s.CreateUser()
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		users = append(users, user)
	}

	// Follow edges: each user follows a handful of others.
	for _, u := range users {
		for i := 0; i < s.rand.Intn(5)+1; i++ {
			target := users[s.rand.Intn(len(users))]
			if target.ID == u.ID {
				continue
			}
			follow := models.Follow{FollowerID: u.ID, FolloweeID: target.ID}
			s.db.Where(&follow).FirstOrCreate(&follow)
		}
	}

	// Mate requests in various states, plus a share of promoted pairs.
	for i := 0; i+1 < len(users); i += 2 {
		a, b := users[i], users[i+1]
		low, high := models.NormalizePair(a.ID, b.ID)

		if s.rand.Intn(3) == 0 {
			mate := models.Mate{
				UserLowID:  low,
				UserHighID: high,
				Since:      time.Now().Add(-time.Duration(s.rand.Intn(60*24)) * time.Hour),
			}
			if err := s.db.Create(&mate).Error; err != nil {
				return nil, fmt.Errorf("create mate: %w", err)
			}
			continue
		}

		progressLow := s.rand.Intn(models.MateThreshold)
		progressHigh := s.rand.Intn(models.MateThreshold)
		req := models.MateRequest{
			UserLowID:    low,
			UserHighID:   high,
			RequesterID:  a.ID,
			ProgressLow:  progressLow,
			ProgressHigh: progressHigh,
		}
		if progressLow > 0 {
			t := time.Now().Add(-time.Duration(25+s.rand.Intn(100)) * time.Hour)
			req.LastClickLow = &t
		}
		if progressHigh > 0 {
			t := time.Now().Add(-time.Duration(25+s.rand.Intn(100)) * time.Hour)
			req.LastClickHigh = &t
		}
		if err := s.db.Create(&req).Error; err != nil {
			return nil, fmt.Errorf("create mate request: %w", err)
		}
	}

	log.Printf("Seeded %d users with follows, requests and mates", len(users))
	return users, nil
}

// SeedConversations creates direct conversations with messages between
// random user pairs.
func (s *Seeder) SeedConversations(users []*models.User, numConversations int) error {
	log.Printf("Seeding %d conversations...", numConversations)

	for i := 0; i < numConversations; i++ {
		a := users[s.rand.Intn(len(users))]
		b := users[s.rand.Intn(len(users))]
		if a.ID == b.ID {
			continue
		}

		key := models.DirectKey(a.ID, b.ID)
		var existing models.Conversation
		if err := s.db.Where("direct_key = ?", key).First(&existing).Error; err == nil {
			continue
		}

		conv := models.Conversation{DirectKey: &key, CreatedBy: a.ID}
		if err := s.db.Create(&conv).Error; err != nil {
			return fmt.Errorf("create conversation: %w", err)
		}
		for _, uid := range []uint{a.ID, b.ID} {
			participant := models.ConversationParticipant{ConversationID: conv.ID, UserID: uid}
			if err := s.db.Create(&participant).Error; err != nil {
				return fmt.Errorf("create participant: %w", err)
			}
		}

		numMessages := s.rand.Intn(15) + 1
		for m := 0; m < numMessages; m++ {
			sender := a.ID
			if s.rand.Intn(2) == 0 {
				sender = b.ID
			}
			msg := models.Message{
				ConversationID: conv.ID,
				SenderID:       sender,
				Content:        gofakeit.Sentence(s.rand.Intn(12) + 3),
			}
			if err := s.db.Create(&msg).Error; err != nil {
				return fmt.Errorf("create message: %w", err)
			}
		}
	}

	return nil
}
