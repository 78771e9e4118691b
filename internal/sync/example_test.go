package sync_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mschirtzinger/personal-dash/internal/db"
	"github.com/mschirtzinger/personal-dash/internal/provider"
	"github.com/mschirtzinger/personal-dash/internal/provider/fake"
	"github.com/mschirtzinger/personal-dash/internal/schema"
	"github.com/mschirtzinger/personal-dash/internal/sync"
)

func ExampleEngine_SyncAll() {
	dir, err := os.MkdirTemp("", "pd-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store, err := db.Open(filepath.Join(dir, "pd.db"))
	if err != nil {
		log.Fatal(err)
	}
	defer store.Close()

	p := fake.New()
	p.AddCalendar(provider.Calendar{ID: "me@example.com", Summary: "Me", Primary: true})
	p.PutEvent("me@example.com", provider.Event{
		ID:      "e1",
		Summary: "Mum's birthday",
		Start:   provider.EventTime{Date: time.Now().AddDate(0, 0, 7).Format(schema.DateLayout)},
		End:     provider.EventTime{Date: time.Now().AddDate(0, 0, 8).Format(schema.DateLayout)},
	})

	ctx := context.Background()
	settings := schema.DefaultSettings()
	settings.SelectedCalendarIDs = []string{"me@example.com"}
	if err := store.UpdateSettings(ctx, settings); err != nil {
		log.Fatal(err)
	}

	engine := sync.New(store, p, sync.DefaultConfig(), log.New(os.Stderr, "", 0))
	report, err := engine.SyncAll(ctx)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("calendars=%d upserted=%d\n", report.CalendarsProcessed, report.EventsUpserted)
}
