package docbacked

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/inkwell-ai/chatcore/pkg/chatid"
	"github.com/inkwell-ai/chatcore/pkg/domain"
)

var (
	testClient    *mongo.Client
	testContainer testcontainers.Container
	skipMongo     bool
)

// setupMongo starts a throwaway mongo:7 container via testcontainers. If
// Docker isn't reachable in this environment the whole suite is skipped
// rather than failed, mirroring how the pack's own Mongo-backed store
// tests degrade in CI sandboxes without Docker.
func setupMongo(t *testing.T) *mongo.Database {
	t.Helper()
	if skipMongo {
		t.Skip("docker not available, skipping mongo-backed repo test")
	}
	if testClient == nil {
		ctx := context.Background()
		var containerErr error
		func() {
			defer func() {
				if r := recover(); r != nil {
					containerErr = fmt.Errorf("docker not available: %v", r)
				}
			}()
			req := testcontainers.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{"27017/tcp"},
				WaitingFor:   wait.ForLog("Waiting for connections"),
				Tmpfs:        map[string]string{"/data/db": "rw"},
			}
			testContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
				ContainerRequest: req,
				Started:          true,
			})
		}()
		if containerErr != nil {
			skipMongo = true
			t.Skip("docker not available, skipping mongo-backed repo test")
		}
		host, err := testContainer.Host(ctx)
		if err != nil {
			skipMongo = true
			t.Skip("docker not available, skipping mongo-backed repo test")
		}
		port, err := testContainer.MappedPort(ctx, "27017")
		if err != nil {
			skipMongo = true
			t.Skip("docker not available, skipping mongo-backed repo test")
		}
		uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
		client, err := mongo.Connect(options.Client().ApplyURI(uri))
		if err != nil {
			skipMongo = true
			t.Skip("docker not available, skipping mongo-backed repo test")
		}
		ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(ctxPing, nil); err != nil {
			skipMongo = true
			t.Skip("docker not available, skipping mongo-backed repo test")
		}
		testClient = client
	}
	return testClient.Database("chatcore_test_" + t.Name())
}

func TestCharacterRepoCreateFindUpdateDelete(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()
	repo, err := NewCharacterRepo(ctx, db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userID := chatid.New()
	created, err := repo.Create(ctx, domain.Character{UserID: userID, Name: "Aria"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.ID == chatid.Nil {
		t.Fatalf("expected an id to be assigned")
	}

	found, err := repo.FindByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found.Name != "Aria" {
		t.Fatalf("expected name Aria, got %q", found.Name)
	}

	updated, err := repo.Update(ctx, created.ID, func(c *domain.Character) { c.Name = "Aria Renamed" })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Name != "Aria Renamed" {
		t.Fatalf("expected renamed character, got %q", updated.Name)
	}

	if err := repo.Delete(ctx, created.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := repo.FindByID(ctx, created.ID); err == nil {
		t.Fatalf("expected deleted character to be gone")
	}
}

func TestConnectionProfileSetDefaultUnsetsOthers(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()
	repo, err := NewConnectionProfileRepo(ctx, db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userID := chatid.New()
	a, _ := repo.Create(ctx, domain.ConnectionProfile{UserID: userID, Provider: "openai", IsDefault: true})
	b, _ := repo.Create(ctx, domain.ConnectionProfile{UserID: userID, Provider: "anthropic", IsDefault: false})

	if err := repo.SetDefault(ctx, userID, b.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	refreshedA, _ := repo.FindByID(ctx, a.ID)
	refreshedB, _ := repo.FindByID(ctx, b.ID)
	if refreshedA.IsDefault {
		t.Fatalf("expected a's default unset")
	}
	if !refreshedB.IsDefault {
		t.Fatalf("expected b to be default")
	}
}

func TestChatLogAppendAssignsIncreasingSeq(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()
	log, err := NewChatLog(ctx, db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	chatID := chatid.New()

	first, err := log.Append(ctx, domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := log.Append(ctx, domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Role: domain.RoleAssistant, Content: "hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Seq != 0 || second.Seq != 1 {
		t.Fatalf("expected seq 0 then 1, got %d then %d", first.Seq, second.Seq)
	}

	events, err := log.GetMessages(ctx, chatID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 2 || events[0].ID != first.ID || events[1].ID != second.ID {
		t.Fatalf("expected insertion order, got %#v", events)
	}
}

func TestChatLogFindByClientRequestIDReturnsLatest(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()
	log, _ := NewChatLog(ctx, db)
	chatID := chatid.New()

	_, _ = log.Append(ctx, domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Content: "first", ClientRequestID: "req-1"}})
	second, _ := log.Append(ctx, domain.ChatEvent{ChatID: chatID, Kind: domain.EventKindMessage, Message: &domain.MessageEvent{Content: "second", ClientRequestID: "req-1"}})

	found, ok, err := log.FindByClientRequestID(ctx, chatID, "req-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || found.ID != second.ID {
		t.Fatalf("expected to find the latest event with req-1, got %#v", found)
	}

	_, ok, err = log.FindByClientRequestID(ctx, chatID, "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no match for unknown client request id")
	}
}
