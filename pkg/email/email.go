// pkg/email/email.go
package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"
)

type EmailService struct {
	apiKey    string
	from      string
	templates *template.Template
}

type EmailData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

// Template data structures
type SubscriptionEmailData struct {
	Name         string
	PlanName     string
	PriceDollars float64
	MonthlyLimit int
	CycleEnd     time.Time
	IsRenewal    bool
}

type SubscriptionCancelledData struct {
	Name     string
	PlanName string
}

type PaymentFailedData struct {
	Name string
}

type CycleEndWarningData struct {
	Name     string
	PlanName string
	DaysLeft int
	CycleEnd time.Time
}

func NewEmailService(apiKey string) (*EmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %v", err)
	}

	return &EmailService{
		apiKey:    apiKey,
		from:      "PhotoX <noreply@photox.app>",
		templates: templates,
	}, nil
}

func (s *EmailService) sendTemplateEmail(to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %v", err)
	}

	emailData := EmailData{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("error marshaling email data: %v", err)
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("resend API error: %s", string(respBody))
	}

	log.Printf("Sent %s email to %s", templateName, to)
	return nil
}

func (s *EmailService) SendSubscriptionStartedEmail(
	to, name, planName string,
	priceCents int64,
	monthlyLimit int,
	cycleEnd time.Time,
	isRenewal bool,
) error {
	data := SubscriptionEmailData{
		Name:         name,
		PlanName:     planName,
		PriceDollars: float64(priceCents) / 100,
		MonthlyLimit: monthlyLimit,
		CycleEnd:     cycleEnd,
		IsRenewal:    isRenewal,
	}

	subject := "Welcome to PhotoX " + planName + "! 🎉"
	if isRenewal {
		subject = "Your PhotoX Subscription Has Been Renewed 🔄"
	}

	return s.sendTemplateEmail(to, subject, "subscription_started.html", data)
}

func (s *EmailService) SendSubscriptionCancelledEmail(to, name, planName string) error {
	data := SubscriptionCancelledData{
		Name:     name,
		PlanName: planName,
	}
	return s.sendTemplateEmail(to, "Your Subscription Has Been Cancelled", "subscription_cancelled.html", data)
}

func (s *EmailService) SendPaymentFailedEmail(to, name string) error {
	data := PaymentFailedData{
		Name: name,
	}
	return s.sendTemplateEmail(to, "Payment Failed: Action Required ⚠️", "payment_failed.html", data)
}

func (s *EmailService) SendCycleEndWarning(to, name, planName string, cycleEnd time.Time, daysLeft int) error {
	data := CycleEndWarningData{
		Name:     name,
		PlanName: planName,
		DaysLeft: daysLeft,
		CycleEnd: cycleEnd,
	}
	return s.sendTemplateEmail(
		to,
		fmt.Sprintf("Your Billing Cycle Ends in %d Days", daysLeft),
		"cycle_end_warning.html",
		data,
	)
}
