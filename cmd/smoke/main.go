// Command smoke exercises a running API end to end: login, create a case,
// approve it, and check the history. Requires seeded credentials.
package main

import (
	"fmt"
	"log"
	"os"

	"bank.com/mop/internal/cases"
	"bank.com/mop/internal/client"
)

func main() {
	baseURL := os.Getenv("MOP_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	email := os.Getenv("MOP_SMOKE_EMAIL")
	if email == "" {
		email = "admin@bank.com"
	}
	password := os.Getenv("MOP_SMOKE_PASSWORD")
	if password == "" {
		log.Fatal("MOP_SMOKE_PASSWORD is required")
	}

	c := client.New(baseURL)
	if err := c.Healthz(); err != nil {
		log.Fatalf("healthz: %v", err)
	}

	user, err := c.Login(email, password)
	if err != nil {
		log.Fatalf("login: %v", err)
	}

	created, err := c.CreateCase(cases.Input{
		BusinessName:       "Smoke Test Trading",
		BusinessType:       "Private Limited Company",
		RegistrationNumber: "REG-SMOKE-1",
		MerchantCategory:   "Electronics",
		BusinessAddress:    "1 Smoke Street",
		DirectorName:       "Smoke Director",
		DirectorIC:         "900101105678",
		DirectorPhone:      "60123456789",
		DirectorEmail:      "director@smoke.example",
	}, false)
	if err != nil {
		log.Fatalf("create case: %v", err)
	}
	if created.Status != cases.StatusDraft {
		log.Fatalf("expected draft, got %q", created.Status)
	}

	submitted, err := c.Submit(created.ID)
	if err != nil {
		log.Fatalf("submit: %v", err)
	}
	if submitted.Status != cases.StatusPendingReview {
		log.Fatalf("expected pending review, got %q", submitted.Status)
	}

	if _, err := c.Comment(created.ID, "smoke test run"); err != nil {
		log.Fatalf("comment: %v", err)
	}

	approved, err := c.Approve(created.ID)
	if err != nil {
		log.Fatalf("approve: %v", err)
	}
	if approved.Status != cases.StatusApproved {
		log.Fatalf("expected approved, got %q", approved.Status)
	}

	history, err := c.History(created.ID)
	if err != nil {
		log.Fatalf("history: %v", err)
	}
	if len(history) == 0 || history[0].Action != "Case approved" {
		log.Fatalf("unexpected history head: %+v", history)
	}

	fmt.Printf("✅ smoke test passed: user=%s case=%s status=%s\n", user.Email, created.ID, approved.Status)
}
