// Seed creates a demo estate with an active quest, two milestones, and a
// locked letter, then prints bearer tokens for each role. Development only.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"heirloom/internal/estate"
	estatestore "heirloom/internal/estate/store"
	"heirloom/internal/jwtauth"
	"heirloom/internal/media"
	mediastore "heirloom/internal/media/store"
	"heirloom/internal/platform/config"
	"heirloom/internal/platform/logger"
	"heirloom/internal/platform/postgres"
	"heirloom/internal/quest"
	queststore "heirloom/internal/quest/store"
	id "heirloom/pkg/domain"
	txrunner "heirloom/pkg/platform/tx"
)

const tokenTTL = 30 * 24 * time.Hour

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("open postgres failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	estates := estatestore.NewPostgres(db)
	quests := queststore.NewPostgres(db)
	assets := mediastore.NewPostgres(db)
	runner := txrunner.NewSQLRunner(db)

	owner := id.NewPrincipalID()
	beneficiaryPrincipal := id.NewPrincipalID()
	trusteePrincipal := id.NewPrincipalID()
	now := time.Now().UTC()

	e := &estate.Estate{
		ID:        id.NewEstateID(),
		OwnerID:   owner,
		Name:      "The Walker Estate",
		Status:    estate.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b := &estate.Beneficiary{
		ID:          id.NewBeneficiaryID(),
		EstateID:    e.ID,
		DisplayName: "June Walker",
		Email:       "june@example.com",
		Invitation:  estate.InvitationAccepted,
		PrincipalID: &beneficiaryPrincipal,
		CreatedAt:   now,
	}
	t := &estate.Trustee{
		ID:          id.NewTrusteeID(),
		EstateID:    e.ID,
		DisplayName: "Marcus Boone",
		Email:       "marcus@example.com",
		Permissions: estate.TrusteePermissions{CanVerify: true, CanViewAll: true},
		Invitation:  estate.InvitationAccepted,
		PrincipalID: &trusteePrincipal,
		CreatedAt:   now,
	}

	published := now
	q := &quest.Quest{
		ID:            id.NewQuestID(),
		EstateID:      e.ID,
		BeneficiaryID: b.ID,
		Title:         "Finish school, start strong",
		Description:   "Two steps; the second waits on the first.",
		Status:        quest.QuestStatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
		PublishedAt:   &published,
	}
	m1 := quest.Milestone{
		ID:         id.NewMilestoneID(),
		QuestID:    q.ID,
		OrderIndex: 0,
		Title:      "Graduate",
		Type:       "education",
		Value:      500000,
		Mode:       quest.VerificationModeDocument,
		Status:     quest.MilestoneStatusLocked,
	}
	m2 := quest.Milestone{
		ID:            id.NewMilestoneID(),
		QuestID:       q.ID,
		OrderIndex:    1,
		Title:         "First job",
		Type:          "career",
		Value:         1000000,
		Mode:          quest.VerificationModeManual,
		Status:        quest.MilestoneStatusLocked,
		Prerequisites: []id.MilestoneID{m1.ID},
	}
	letter := &media.Media{
		ID:          id.NewMediaID(),
		EstateID:    e.ID,
		MilestoneID: &m1.ID,
		Title:       "A letter for graduation day",
		Kind:        media.KindLetter,
		StorageRef:  "blob://letters/graduation.txt",
		Condition:   media.UnlockMilestoneComplete,
		CreatedAt:   now,
	}

	err = runner.InTx(ctx, func(ctx context.Context) error {
		if err := estates.CreateEstate(ctx, e); err != nil {
			return err
		}
		if err := estates.CreateBeneficiary(ctx, b); err != nil {
			return err
		}
		if err := estates.CreateTrustee(ctx, t); err != nil {
			return err
		}
		if err := quests.CreateQuest(ctx, q); err != nil {
			return err
		}
		ms := []quest.Milestone{m1, m2}
		if err := quests.ReplaceMilestones(ctx, q.ID, ms, quest.TotalValue(ms)); err != nil {
			return err
		}
		return assets.Create(ctx, letter)
	})
	if err != nil {
		log.Error("seed failed", "error", err)
		os.Exit(1)
	}

	jwtService := jwtauth.NewService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)
	printToken := func(label string, principal id.PrincipalID, role id.Role) {
		token, err := jwtService.GenerateAccessToken(principal, role, tokenTTL)
		if err != nil {
			log.Error("mint token failed", "role", role, "error", err)
			os.Exit(1)
		}
		fmt.Printf("%s token:\n  %s\n", label, token)
	}

	fmt.Printf("estate:      %s\n", e.ID)
	fmt.Printf("quest:       %s\n", q.ID)
	fmt.Printf("milestone 1: %s\n", m1.ID)
	fmt.Printf("milestone 2: %s\n", m2.ID)
	fmt.Printf("media:       %s\n\n", letter.ID)
	printToken("benefactor", owner, id.RoleBenefactor)
	printToken("beneficiary", beneficiaryPrincipal, id.RoleBeneficiary)
	printToken("trustee", trusteePrincipal, id.RoleTrustee)
}
