package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/smallbiznis/rentpay/internal/config"
	"github.com/smallbiznis/rentpay/internal/payment/domain"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore writes documents to Cloud Firestore. The client is created
// on first use and shared by every request.
type FirestoreStore struct {
	cfg config.Config
	log *zap.Logger

	once   sync.Once
	client *firestore.Client
	err    error
}

func NewFirestoreStore(cfg config.Config, log *zap.Logger) *FirestoreStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FirestoreStore{cfg: cfg, log: log.Named("payment.store.firestore")}
}

func (s *FirestoreStore) Client() (*firestore.Client, error) {
	s.once.Do(func() {
		s.client, s.err = newFirestoreClient(context.Background(), s.cfg)
		if s.err != nil {
			s.log.Error("firestore client init failed", zap.Error(s.err))
			return
		}
		s.log.Info("firestore client initialized",
			zap.String("project_id", s.cfg.Firestore.ProjectID),
			zap.Bool("local_dev", s.cfg.LocalDev),
		)
	})
	if s.err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrStoreUnavailable, s.err.Error())
	}
	return s.client, nil
}

func newFirestoreClient(ctx context.Context, cfg config.Config) (*firestore.Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.LocalDev:
		opts = append(opts, option.WithCredentialsFile(cfg.Firestore.CredentialsFile))
	case strings.TrimSpace(cfg.Firestore.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Firestore.CredentialsJSON)))
	}

	projectID := strings.TrimSpace(cfg.Firestore.ProjectID)
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	return firestore.NewClient(ctx, projectID, opts...)
}

func (s *FirestoreStore) Merge(ctx context.Context, collection, key string, fields map[string]any, now time.Time) (bool, error) {
	if collection == "" || key == "" {
		return false, domain.ErrInvalidEvent
	}
	client, err := s.Client()
	if err != nil {
		return false, err
	}

	now = now.UTC()
	ref := client.Collection(collection).Doc(key)
	created := false
	err = client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		created = false
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}

		data := make(map[string]any, len(fields)+2)
		for k, v := range fields {
			data[k] = v
		}
		delete(data, "createdOn")
		data["updatedOn"] = now
		if snap == nil || !snap.Exists() {
			data["createdOn"] = now
			created = true
		}
		return tx.Set(ref, data, firestore.MergeAll)
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

func (s *FirestoreStore) Get(ctx context.Context, collection, key string) (domain.Document, error) {
	client, err := s.Client()
	if err != nil {
		return nil, err
	}
	snap, err := client.Collection(collection).Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return domain.Document(snap.Data()), nil
}

// Close releases the client if it was ever created.
func (s *FirestoreStore) Close() error {
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
