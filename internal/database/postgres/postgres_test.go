//go:build integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/photo-library/internal/config"
	"github.com/kozaktomas/photo-library/internal/database"
	"github.com/kozaktomas/photo-library/internal/database/sqlstore"
	"github.com/kozaktomas/photo-library/internal/faces"
	"github.com/kozaktomas/photo-library/internal/fingerprint"
)

func setupTestContainer(t *testing.T) (*sqlstore.Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	cfg := &config.DatabaseConfig{
		Driver:       "postgres",
		URL:          fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	}

	store, err := Open(ctx, cfg)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to open store: %v", err)
	}

	if _, err := store.Migrate(ctx); err != nil {
		store.Close()
		container.Terminate(ctx)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	cleanup := func() {
		store.Close()
		container.Terminate(ctx)
	}

	return store, cleanup
}

func TestStore(t *testing.T) {
	store, cleanup := setupTestContainer(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	taken := time.Date(2020, 5, 1, 8, 0, 0, 0, time.UTC)

	var photoID, alice, bob int64

	t.Run("InsertAndFindPhoto", func(t *testing.T) {
		var digest fingerprint.Digest
		digest[0] = 0xAB
		id, err := store.InsertPhoto(ctx, database.NewPhoto{
			Digest: digest, FileName: "2020-05/x.jpg",
			ImageWidth: 640, ImageHeight: 480, ThumbWidth: 341, ThumbHeight: 256,
			OriginalDatetime: &taken, UploadDatetime: time.Now(),
		})
		if err != nil {
			t.Fatalf("Failed to insert photo: %v", err)
		}
		photoID = id

		found, ok, err := store.FindPhotoByDigest(ctx, digest)
		if err != nil || !ok || found != id {
			t.Errorf("Expected photo %d, got %d %v %v", id, found, ok, err)
		}
	})

	t.Run("PeopleAndAppearances", func(t *testing.T) {
		var err error
		if alice, err = store.InsertPlaceholderPerson(ctx); err != nil {
			t.Fatalf("Failed to insert person: %v", err)
		}
		if bob, err = store.InsertPlaceholderPerson(ctx); err != nil {
			t.Fatalf("Failed to insert person: %v", err)
		}

		var emb faces.Embedding
		for i := range emb {
			emb[i] = float64(i) / 128
		}
		appID, err := store.InsertAppearance(ctx, database.Appearance{
			Person: alice, Photo: photoID, Reference: true,
			Top: 1, Left: 2, Bottom: 30, Right: 40, Embedding: emb,
		})
		if err != nil {
			t.Fatalf("Failed to insert appearance: %v", err)
		}
		if _, err := store.InsertAvatar(ctx, alice, appID); err != nil {
			t.Fatalf("Failed to insert avatar: %v", err)
		}

		known, err := store.KnownFaces(ctx)
		if err != nil {
			t.Fatalf("Failed to fetch known faces: %v", err)
		}
		if len(known) != 1 || known[0].Person != alice {
			t.Fatalf("Expected one known face for %d, got %+v", alice, known)
		}
		// pgvector keeps float32 precision.
		if d := known[0].Embedding.Distance(emb); d > 1e-5 || math.IsNaN(d) {
			t.Errorf("Expected embedding to round trip, distance %v", d)
		}
	})

	t.Run("ForDayWithPeople", func(t *testing.T) {
		photos, err := store.PhotosForDay(ctx, taken, []int64{alice})
		if err != nil {
			t.Fatalf("Failed to fetch photos for day: %v", err)
		}
		if len(photos) != 1 || photos[0].ID != photoID {
			t.Errorf("Expected photo %d, got %+v", photoID, photos)
		}

		photos, err = store.PhotosForDay(ctx, taken, []int64{alice, bob})
		if err != nil || len(photos) != 0 {
			t.Errorf("Expected no photo with both people, got %+v %v", photos, err)
		}

		counts, err := store.CountPerDay(ctx, nil)
		if err != nil || len(counts) != 1 || counts[0].Count != 1 {
			t.Errorf("Unexpected counts %+v %v", counts, err)
		}
	})

	t.Run("Merge", func(t *testing.T) {
		if err := store.MergePeople(ctx, bob, alice); err != nil {
			t.Fatalf("Failed to merge: %v", err)
		}
		if p, _ := store.GetPerson(ctx, alice); p != nil {
			t.Error("Expected merged person to be deleted")
		}
		if err := store.MergePeople(ctx, bob, alice); !errors.Is(err, database.ErrNoSuchRecord) {
			t.Errorf("Expected ErrNoSuchRecord, got %v", err)
		}
	})

	t.Run("UpdateMissing", func(t *testing.T) {
		err := store.UpdatePerson(ctx, database.Person{ID: 12345, FirstName: "a", Surname: "b"})
		if !errors.Is(err, database.ErrNoSuchRecord) {
			t.Errorf("Expected ErrNoSuchRecord, got %v", err)
		}
	})
}
