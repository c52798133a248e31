package alert

import (
	"sync"
	"testing"
	"time"
)

func TestAdmitWithinWindowBlocks(t *testing.T) {
	reg := NewRegistry()
	key := Key{Subject: "BTC", Name: "golden_cross", Timeframe: "1d"}
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if !reg.Admit(key, t0, time.Hour) {
		t.Fatal("expected first admit to pass")
	}
	if reg.Admit(key, t0.Add(30*time.Minute), time.Hour) {
		t.Fatal("expected admit within the cooldown window to fail")
	}
}

func TestAdmitAfterWindowPasses(t *testing.T) {
	reg := NewRegistry()
	key := Key{Subject: "BTC", Name: "1h_move", Timeframe: "1h"}
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if !reg.Admit(key, t0, time.Hour) {
		t.Fatal("expected first admit to pass")
	}
	if !reg.Admit(key, t0.Add(time.Hour), time.Hour) {
		t.Fatal("expected admit exactly at the window boundary to pass")
	}
}

func TestAdmitDistinguishesKeys(t *testing.T) {
	reg := NewRegistry()
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if !reg.Admit(Key{"BTC", "golden_cross", "1d"}, t0, time.Hour) {
		t.Fatal("expected admit for first key")
	}
	if !reg.Admit(Key{"BTC", "golden_cross", "1w"}, t0, time.Hour) {
		t.Fatal("expected admit for same signal on another timeframe")
	}
	if !reg.Admit(Key{"ETH", "golden_cross", "1d"}, t0, time.Hour) {
		t.Fatal("expected admit for another subject")
	}
	if reg.Len() != 3 {
		t.Fatalf("expected 3 tracked keys, got %d", reg.Len())
	}
}

func TestAdmitConcurrentSameKeyAdmitsOne(t *testing.T) {
	reg := NewRegistry()
	key := Key{Subject: "SOL", Name: "cross_above_vwap", Timeframe: "1h"}
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	const workers = 32
	var wg sync.WaitGroup
	admitted := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if reg.Admit(key, now, time.Hour) {
				admitted <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(admitted)

	count := 0
	for range admitted {
		count++
	}
	if count != 1 {
		t.Fatalf("expected exactly one concurrent admission, got %d", count)
	}
}
