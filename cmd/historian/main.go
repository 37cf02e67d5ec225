// cmd/historian/main.go is an asynchronous historian service that pops move
// records from a Redis queue and persists them to a PostgreSQL database.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"github.com/AndresSweeneyRios/uno/internal/cache"
	"github.com/AndresSweeneyRios/uno/internal/database"
)

// HistorianService encapsulates the Redis + DB logic for capturing lobby
// moves and marking lobbies abandoned after a period of inactivity.
type HistorianService struct {
	redisClient  *redis.Client
	batchSize    int
	flushDelay   time.Duration
	inactivity   time.Duration
	lastActivity sync.Map // map[string]time.Time keyed by lobby name

	batchMu  sync.Mutex
	batch    []cache.MoveRecord
	ctx      context.Context
	cancelFn context.CancelFunc
}

// NewHistorianService constructs a HistorianService from environment variables or defaults.
func NewHistorianService() *HistorianService {
	batchSize := getEnvInt("HISTORIAN_BATCH_SIZE", 20)
	flushMs := getEnvInt("HISTORIAN_FLUSH_MS", 500)
	inactivitySec := getEnvInt("LOBBY_INACTIVITY_TIMEOUT_SEC", 600)

	redisAddr := getEnv("REDIS_ADDR", "localhost:6379")
	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	return &HistorianService{
		redisClient: rdb,
		batchSize:   batchSize,
		flushDelay:  time.Duration(flushMs) * time.Millisecond,
		inactivity:  time.Duration(inactivitySec) * time.Second,
		batch:       make([]cache.MoveRecord, 0, batchSize),
		ctx:         ctx,
		cancelFn:    cancel,
	}
}

// Run starts the queue-draining loop and the periodic inactivity check.
func (hs *HistorianService) Run() {
	database.ConnectDB()

	go hs.readRedisLoop()
	go hs.inactivityLoop()

	log.Println("uno-historian service started.")
	<-hs.ctx.Done()
	log.Println("uno-historian shutting down.")
}

// readRedisLoop continuously uses BLPop to retrieve move records from the Redis queue.
func (hs *HistorianService) readRedisLoop() {
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()

	queueName := getEnv("HISTORIAN_QUEUE_NAME", cache.DefaultQueueName)

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			hs.flushBatchToDB()

		default:
			// BLPop with a short timeout so context cancellation is handled.
			res, err := hs.redisClient.BLPop(hs.ctx, 3*time.Second, queueName).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				log.Printf("[ERROR] BLPop: %v\n", err)
				continue
			}
			if len(res) < 2 {
				continue
			}

			// res[0] is the queue name and res[1] the payload.
			var record cache.MoveRecord
			if err := json.Unmarshal([]byte(res[1]), &record); err != nil {
				log.Printf("invalid move record: %v\n", err)
				continue
			}

			hs.lastActivity.Store(record.LobbyName, time.Now())
			hs.appendToBatch(record)
		}
	}
}

// appendToBatch adds a record to the in-memory batch and flushes if the threshold is reached.
func (hs *HistorianService) appendToBatch(record cache.MoveRecord) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	hs.batch = append(hs.batch, record)
	if len(hs.batch) >= hs.batchSize {
		hs.flushBatchLocked()
	}
}

// flushBatchToDB flushes the current batch to the database.
func (hs *HistorianService) flushBatchToDB() {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.flushBatchLocked()
}

// flushBatchLocked writes the batch in a single transaction. Caller holds batchMu.
func (hs *HistorianService) flushBatchLocked() {
	if len(hs.batch) == 0 {
		return
	}
	batchCopy := make([]cache.MoveRecord, len(hs.batch))
	copy(batchCopy, hs.batch)
	hs.batch = hs.batch[:0]

	ctx := context.Background()
	err := beginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range batchCopy {
			if err := insertMoveTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("insertMoveTx: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("[ERROR] flushBatch: %v\n", err)
	} else {
		log.Printf("Flushed %d moves to DB.\n", len(batchCopy))
	}
}

// inactivityLoop periodically marks lobbies inactive beyond the threshold as abandoned.
func (hs *HistorianService) inactivityLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-hs.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()
			hs.lastActivity.Range(func(key, val interface{}) bool {
				name, ok1 := key.(string)
				last, ok2 := val.(time.Time)
				if ok1 && ok2 && now.Sub(last) > hs.inactivity {
					hs.markLobbyAbandoned(name)
					hs.lastActivity.Delete(name)
				}
				return true
			})
		}
	}
}

// markLobbyAbandoned marks a lobby 'abandoned' in the database if still 'in_progress'.
func (hs *HistorianService) markLobbyAbandoned(name string) {
	ctx := context.Background()
	err := beginTxFunc(ctx, database.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		q := `
			UPDATE lobbies
			SET status = 'abandoned', end_time = NOW()
			WHERE name = $1 AND status = 'in_progress'
		`
		_, e := tx.Exec(ctx, q, name)
		return e
	})
	if err != nil {
		log.Printf("failed to mark lobby %q abandoned: %v", name, err)
	} else {
		log.Printf("Marked lobby %q as 'abandoned' due to inactivity.", name)
	}
}

// insertMoveTx inserts one move record into lobby_moves, upserting the lobby
// row. A "win" or "leave"-to-empty style terminal move finalizes the lobby.
func insertMoveTx(ctx context.Context, tx pgx.Tx, rec cache.MoveRecord) error {
	upsertLobbyQ := `
		INSERT INTO lobbies (name, status, start_time)
		VALUES ($1, 'in_progress', NOW())
		ON CONFLICT (name)
		DO UPDATE SET status = 'in_progress'
	`
	if _, err := tx.Exec(ctx, upsertLobbyQ, rec.LobbyName); err != nil {
		return err
	}

	moveInsertQ := `
		INSERT INTO lobby_moves (
			lobby_name, move_index, nickname, move_type, payload, recorded_at
		) VALUES ($1, $2, $3, $4, $5, to_timestamp($6 / 1000.0))
	`
	jsonPayload, err := json.Marshal(rec.Payload)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, moveInsertQ,
		rec.LobbyName, rec.MoveIndex, rec.Nickname, rec.MoveType, jsonPayload, rec.Timestamp,
	); err != nil {
		return err
	}

	if rec.MoveType == "win" {
		finalizeQ := `
			UPDATE lobbies
			SET status = 'completed', end_time = NOW()
			WHERE name = $1 AND status = 'in_progress'
		`
		if _, err := tx.Exec(ctx, finalizeQ, rec.LobbyName); err != nil {
			return err
		}
	}
	return nil
}

// beginTxFunc starts a transaction, calls f, and commits or rolls back as needed.
func beginTxFunc(ctx context.Context, pool *pgxpool.Pool, txOptions pgx.TxOptions, f func(tx pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, txOptions)
	if err != nil {
		return err
	}
	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("tx rollback error: %v; original error: %w", rbErr, err)
		}
		return err
	}
	return tx.Commit(ctx)
}

// Stop gracefully stops the historian service.
func (hs *HistorianService) Stop() {
	hs.cancelFn()
}

func main() {
	hs := NewHistorianService()
	go hs.Run()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	hs.Stop()
	log.Println("Historian shutdown complete.")
}

// getEnv retrieves an environment variable's value or returns a default.
func getEnv(key, defVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defVal
}

// getEnvInt retrieves an integer env value or returns a default.
func getEnvInt(key string, defVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defVal
	}
	return i
}
