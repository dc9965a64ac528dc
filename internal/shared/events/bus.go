package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/EventStore/EventStore-Client-Go/v4/esdb"
	"github.com/google/uuid"
	"github.com/orbitcrm/platform/internal/shared/config"
	"github.com/orbitcrm/platform/internal/shared/types"
)

// Event represents a domain event published by the CRM modules
// (lead.created, budget.approved, session.created, ...).
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`

	// ActorID identifies the user whose action produced the event.
	ActorID types.ID `json:"actor_id,omitempty"`

	Data any `json:"data"`
}

// NewEvent creates a new event with auto-generated ID and timestamp
func NewEvent(eventType, source string, data any) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// WithActor sets the acting user on the event
func (e Event) WithActor(actorID types.ID) Event {
	e.ActorID = actorID
	return e
}

// Bus publishes domain events to EventStoreDB. It is optional infrastructure:
// callers hold a nil *Bus when event streaming is not configured.
type Bus struct {
	client *esdb.Client
	prefix string
}

// NewBus creates a new event bus connected to EventStoreDB
func NewBus(ctx context.Context, cfg config.EventsConfig) (*Bus, error) {
	settings, err := esdb.ParseConnectionString(connectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	client, err := esdb.NewClient(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to create EventStoreDB client: %w", err)
	}

	bus := &Bus{
		client: client,
		prefix: "crm",
	}

	if err := bus.Health(); err != nil {
		client.Close()
		return nil, err
	}

	return bus, nil
}

func connectionString(cfg config.EventsConfig) string {
	var auth string
	if cfg.Username != "" && cfg.Password != "" {
		auth = fmt.Sprintf("%s:%s@", cfg.Username, cfg.Password)
	}

	params := ""
	if cfg.Insecure {
		params = "?tls=false&tlsVerifyCert=false"
	}

	return fmt.Sprintf("esdb://%s%s:%d%s", auth, cfg.Host, cfg.Port, params)
}

// Publish appends an event to the stream derived from its type:
// "lead.created" goes to "crm-lead-created".
func (b *Bus) Publish(ctx context.Context, event Event) error {
	if b == nil {
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	stream := fmt.Sprintf("%s-%s", b.prefix, strings.ReplaceAll(event.Type, ".", "-"))

	eventID, err := uuid.Parse(event.ID)
	if err != nil {
		eventID = uuid.New()
	}

	esdbEvent := esdb.EventData{
		EventType:   event.Type,
		ContentType: esdb.ContentTypeJson,
		Data:        data,
		EventID:     eventID,
	}

	_, err = b.client.AppendToStream(ctx, stream, esdb.AppendToStreamOptions{
		ExpectedRevision: esdb.Any{},
	}, esdbEvent)

	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

// Close closes the underlying client
func (b *Bus) Close() {
	if b != nil && b.client != nil {
		b.client.Close()
	}
}

// Health verifies the EventStoreDB connection
func (b *Bus) Health() error {
	if b == nil {
		return fmt.Errorf("event bus not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := b.client.ReadStream(ctx, "$streams", esdb.ReadStreamOptions{
		From:      esdb.Start{},
		Direction: esdb.Forwards,
	}, 1)

	if err != nil {
		return fmt.Errorf("EventStoreDB health check failed: %w", err)
	}
	defer stream.Close()

	return nil
}
