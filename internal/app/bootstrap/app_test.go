package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-booking-engine/internal/booking"
	appconfig "github.com/wolfman30/clinic-booking-engine/internal/config"
	"github.com/wolfman30/clinic-booking-engine/internal/conversation"
	"github.com/wolfman30/clinic-booking-engine/internal/notify"
	"github.com/wolfman30/clinic-booking-engine/pkg/logging"
)

func testConfig() *appconfig.Config {
	return &appconfig.Config{
		ClinicTimezone:          "UTC",
		AvailabilityHorizonDays: 14,
		SearchPageSize:          5,
		RateLimitPerMinute:      100,
		EmailProvider:           "stub",
		EventsSink:              "none",
	}
}

func seedJSON(date string) string {
	return fmt.Sprintf(`[
		{"id":"doc-1","name":"Dr. Priya Sharma","specialty":"Neurology","city":"Delhi",
		 "profileDetails":{"consultationFee":700},
		 "availability":[{"date":%q,"slots":[{"time":"10:00 AM"},{"time":"11:00 AM"}]}]},
		{"id":"doc-2","name":"Dr. Kavya Rao","specialty":"Dermatology"}
	]`, date)
}

func buildApp(t *testing.T) *App {
	t.Helper()
	app, err := Build(context.Background(), testConfig(), Deps{
		Registry: prometheus.NewRegistry(),
		Logger:   logging.New("error"),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")
	n, err := SeedDoctors(context.Background(), app.Doctors, strings.NewReader(seedJSON(tomorrow)))
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 seeded doctors, got %d", n)
	}
	return app
}

func TestBuildRequiresConfig(t *testing.T) {
	if _, err := Build(context.Background(), nil, Deps{}); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildInMemoryBookingNotifiesPatientAndDoctor(t *testing.T) {
	app := buildApp(t)
	ctx := context.Background()
	tomorrow := time.Now().UTC().AddDate(0, 0, 1).Format("2006-01-02")

	res, err := app.Booking.Book(ctx, booking.Request{
		DoctorID:    "doc-1",
		PatientID:   "pat-1",
		PatientName: "Asha",
		Date:        tomorrow,
		Time:        "10:00 AM",
	})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if res.TokenNumber != 1 {
		t.Fatalf("expected token 1, got %d", res.TokenNumber)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := app.Bus.Wait(waitCtx); err != nil {
		t.Fatalf("bus wait: %v", err)
	}

	patientFeed, err := app.Notifications.List(ctx, "pat-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(patientFeed) != 1 || patientFeed[0].Type != notify.TypeAppointment {
		t.Fatalf("expected one appointment notification for the patient, got %+v", patientFeed)
	}
	doctorFeed, err := app.Notifications.List(ctx, "doc-1", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(doctorFeed) != 1 {
		t.Fatalf("expected one notification for the doctor, got %+v", doctorFeed)
	}
}

func TestBuildInMemoryConversationRunsOnLocalRules(t *testing.T) {
	app := buildApp(t)

	resp, err := app.Conversation.Handle(context.Background(), conversation.Request{Message: "I have a migraine"})
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if resp.Action != conversation.ActionShowDoctorCards {
		t.Fatalf("expected doctor cards, got %q", resp.Action)
	}
	if len(resp.Doctors) != 1 || resp.Doctors[0].ID != "doc-1" {
		t.Fatalf("expected the neurologist, got %+v", resp.Doctors)
	}
	if resp.SessionID == "" {
		t.Fatalf("expected a generated session id")
	}
}

func TestAppRouterServesHealthAndSlots(t *testing.T) {
	app := buildApp(t)
	h := app.Router(nil)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/doctors/doc-1/slots", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "10:00 AM") {
		t.Fatalf("expected free slots, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestSeedDoctorsRejectsMalformedJSON(t *testing.T) {
	app := buildApp(t)
	if _, err := SeedDoctors(context.Background(), app.Doctors, strings.NewReader(`{"id":`)); err == nil {
		t.Fatalf("expected decode error")
	}
	if n, err := SeedDoctorsFromFile(context.Background(), app.Doctors, ""); err != nil || n != 0 {
		t.Fatalf("expected empty path to be a no-op, got %d %v", n, err)
	}
}
