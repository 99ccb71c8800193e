package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/500lbbicepcurl/Scalysis-public/internal/daterange"
	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
	"github.com/500lbbicepcurl/Scalysis-public/internal/repository"
	"github.com/500lbbicepcurl/Scalysis-public/internal/segment"
	"github.com/500lbbicepcurl/Scalysis-public/internal/simulation"
)

// csvStoreID names the single store a CSV session simulates.
const csvStoreID = "csv.local"

var errNoOrderID = errors.New("order_id column is required")

// readOrders parses a CSV export with a header row. Column names are matched
// case-insensitively; unknown columns are ignored. order_date accepts a
// YYYY-MM-DD date in IST or an RFC 3339 timestamp.
func readOrders(r io.Reader) ([]domain.OrderRecord, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := cols["order_id"]; !ok {
		return nil, errNoOrderID
	}

	created := time.Now().UTC()
	var orders []domain.OrderRecord
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		o := domain.OrderRecord{
			OrderID:        get("order_id"),
			Name:           get("name"),
			Currency:       get("currency"),
			Address1:       get("address1"),
			City:           get("city"),
			Province:       get("province"),
			Country:        get("country"),
			Zip:            get("zip"),
			DeliveryStatus: get("delivery_status"),
			AWB:            get("awb"),
			CreatedAt:      created,
		}
		if o.OrderID == "" {
			return nil, fmt.Errorf("line %d: %w", line, errNoOrderID)
		}

		if v := get("amount"); v != "" {
			amt, err := decimal.NewFromString(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid amount %q", line, v)
			}
			o.Amount = amt
		}
		if v := get("risk_score"); v != "" {
			score, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid risk_score %q", line, v)
			}
			o.RiskScore = &score
		}
		if v := get("order_date"); v != "" {
			t, err := parseOrderDate(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid order_date %q", line, v)
			}
			o.OrderDate = &t
		}
		if v := get("training_data"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid training_data %q", line, v)
			}
			o.TrainingData = b
		}

		orders = append(orders, o)
	}
	return orders, nil
}

func parseOrderDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	start, _, err := daterange.DayBounds(v)
	if err != nil {
		return time.Time{}, err
	}
	return start.UTC(), nil
}

// session is a ready in-memory store loaded with CSV orders.
type session struct {
	repo domain.Repository
	sim  *simulation.Service
}

// openSession loads orders into an in-memory SQLite store so the CSV is
// ordered and filtered exactly as the server would.
func openSession(ctx context.Context, orders []domain.OrderRecord, cfg domain.SimulationConfig) (*session, error) {
	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: ":memory:"})
	if err != nil {
		return nil, err
	}

	if err := repo.SaveStore(ctx, &domain.Store{ID: csvStoreID, ModelStatus: domain.ModelStatusReady}); err != nil {
		repo.Close()
		return nil, err
	}
	for i := range orders {
		if err := repo.SaveOrder(ctx, csvStoreID, &orders[i]); err != nil {
			repo.Close()
			return nil, fmt.Errorf("failed to load order %s: %w", orders[i].OrderID, err)
		}
	}

	segments, err := segment.NewEngine(4)
	if err != nil {
		repo.Close()
		return nil, err
	}

	return &session{
		repo: repo,
		sim:  simulation.NewService(repo, nil, segments, cfg, 0),
	}, nil
}

func (s *session) Close() error {
	return s.repo.Close()
}

func loadSession(ctx context.Context, path string, cfg domain.SimulationConfig) (*session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	orders, err := readOrders(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return openSession(ctx, orders, cfg)
}
