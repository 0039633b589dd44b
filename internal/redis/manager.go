package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/rueidis"
	"github.com/robalyx/socialgraph/internal/setup/config"
	"go.uber.org/zap"
)

// StatsDBIndex holds the hourly graph statistics hashes.
const StatsDBIndex = 1

// ErrManagerClosed is returned by GetClient after Close.
var ErrManagerClosed = errors.New("redis manager is closed")

// Manager hands out one rueidis client per logical database.
// Clients are dialed on first use and shared afterwards.
type Manager struct {
	cfg    *config.Redis
	logger *zap.Logger

	mu      sync.Mutex
	clients map[int]rueidis.Client
	closed  bool
}

// NewManager creates a manager without opening any connection.
func NewManager(cfg *config.Redis, logger *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		logger:  logger.Named("redis"),
		clients: make(map[int]rueidis.Client),
	}
}

// GetClient returns the client for a database index, dialing it if needed.
func (m *Manager) GetClient(dbIndex int) (rueidis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}

	if client, ok := m.clients[dbIndex]; ok {
		return client, nil
	}

	client, err := rueidis.NewClient(m.clientOption(dbIndex))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis db %d: %w", dbIndex, err)
	}

	m.clients[dbIndex] = client
	m.logger.Debug("Connected to redis",
		zap.String("addr", m.addr()),
		zap.Int("db_index", dbIndex))

	return client, nil
}

// Ping checks that the database behind an index answers.
func (m *Manager) Ping(ctx context.Context, dbIndex int) error {
	client, err := m.GetClient(dbIndex)
	if err != nil {
		return err
	}

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("failed to ping redis db %d: %w", dbIndex, err)
	}

	return nil
}

// Close closes every client. Later GetClient calls fail with ErrManagerClosed.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.closed = true

	for dbIndex, client := range m.clients {
		client.Close()
		m.logger.Debug("Closed redis client", zap.Int("db_index", dbIndex))
	}

	clear(m.clients)
}

func (m *Manager) clientOption(dbIndex int) rueidis.ClientOption {
	return rueidis.ClientOption{
		InitAddress:  []string{m.addr()},
		Username:     m.cfg.Username,
		Password:     m.cfg.Password,
		SelectDB:     dbIndex,
		ClientName:   "socialgraph",
		DisableCache: m.cfg.DisableCache,
	}
}

func (m *Manager) addr() string {
	return m.cfg.Host + ":" + strconv.Itoa(m.cfg.Port)
}
