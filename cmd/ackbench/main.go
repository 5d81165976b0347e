package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/d60-Lab/club-overlay/config"
	"github.com/d60-Lab/club-overlay/internal/catalog"
	"github.com/d60-Lab/club-overlay/internal/model"
	"github.com/d60-Lab/club-overlay/internal/repository"
	"github.com/d60-Lab/club-overlay/internal/service"
	"github.com/d60-Lab/club-overlay/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

// perOp is zero when nothing ran.
func perOp(total time.Duration, n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return total / time.Duration(n)
}

// run fires fn n times over conc workers and collects per-call latency.
func run(n, conc int, fn func(i int) error) ([]time.Duration, int, time.Duration) {
	feed := make(chan int, n)
	for i := 0; i < n; i++ {
		feed <- i
	}
	close(feed)

	var mu sync.Mutex
	recs := make([]time.Duration, 0, n)
	failed := 0
	var wg sync.WaitGroup
	t0 := time.Now()
	for w := 0; w < conc; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range feed {
				st := time.Now()
				err := fn(i)
				d := time.Since(st)
				mu.Lock()
				recs = append(recs, d)
				if err != nil {
					failed++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	return recs, failed, time.Since(t0)
}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	ctx := context.Background()

	USERS := envInt("USERS", 1000)
	ITEMS := envInt("ITEMS", 20)
	CONC := envInt("CONC", 16)
	RACE := envInt("RACE", 64) // concurrent first writes on one pair

	acks := repository.NewAcknowledgmentRepository(db)
	msgRepo := repository.NewCatalogRepository[model.Message](db, catalog.Inbox)
	inbox := service.NewOverlayService(msgRepo, acks, nil)
	catalogSvc := service.NewCatalogService(msgRepo, nil)

	// seed a fresh catalog
	ids := make([]string, ITEMS)
	for i := 0; i < ITEMS; i++ {
		m := model.Message{ID: uuid.New().String(), Title: fmt.Sprintf("bench %d", i)}
		if err := catalogSvc.Create(ctx, &m); err != nil {
			panic(err)
		}
		ids[i] = m.ID
	}
	users := make([]string, USERS)
	for i := range users {
		users[i] = "bench-" + uuid.New().String()[:8]
	}

	// 1) first-write race on a single pair
	racer := users[0]
	raceRecs, raceFailed, raceDur := run(RACE, RACE, func(int) error {
		_, err := inbox.Acknowledge(ctx, service.AckRequest{UserID: racer, ItemID: ids[0]})
		return err
	})
	rows := must(acks.Count(ctx, racer, catalog.KindMessage, ids[0]))

	// 2) spread writes: every user reads half the catalog
	N := USERS * ITEMS / 2
	spreadRecs, spreadFailed, spreadDur := run(N, CONC, func(i int) error {
		u := users[i%USERS]
		it := ids[(i/USERS)%ITEMS]
		_, err := inbox.Acknowledge(ctx, service.AckRequest{UserID: u, ItemID: it})
		return err
	})

	// 3) aggregate reads
	countRecs, countFailed, _ := run(USERS, CONC, func(i int) error {
		_, err := inbox.CountUnacknowledged(ctx, users[i])
		return err
	})
	listRecs, listFailed, _ := run(USERS, CONC, func(i int) error {
		_, err := inbox.ListWithStatus(ctx, users[i])
		return err
	})

	fmt.Printf("USERS=%d ITEMS=%d CONC=%d RACE=%d\n", USERS, ITEMS, CONC, RACE)
	fmt.Printf("Race on one pair: total=%v p50=%v p99=%v failed=%d rows=%d (want 1)\n",
		raceDur, pct(raceRecs, 0.50), pct(raceRecs, 0.99), raceFailed, rows)
	fmt.Printf("Spread acknowledge: n=%d total=%v per op=%v p95=%v p99=%v failed=%d\n",
		N, spreadDur, perOp(spreadDur, N), pct(spreadRecs, 0.95), pct(spreadRecs, 0.99), spreadFailed)
	fmt.Printf("Count unacknowledged: p50=%v p95=%v failed=%d\n", pct(countRecs, 0.50), pct(countRecs, 0.95), countFailed)
	fmt.Printf("List with status(%d items): p50=%v p95=%v failed=%d\n", ITEMS, pct(listRecs, 0.50), pct(listRecs, 0.95), listFailed)

	// verify aggregate correctness for a sample of users
	mismatches := 0
	for _, u := range users[:min(len(users), 50)] {
		entries := must(inbox.ListWithStatus(ctx, u))
		want := int64(0)
		for _, e := range entries {
			if !e.Acknowledged {
				want++
			}
		}
		if got := must(inbox.CountUnacknowledged(ctx, u)); got != want {
			mismatches++
		}
	}
	fmt.Printf("Aggregate check: mismatches=%d\n", mismatches)
	if rows != 1 || mismatches > 0 {
		os.Exit(1)
	}
}
