package pipeline

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/serisow/vibeveed/pipeline_type"
)

type mockTimeProvider struct {
	currentTime time.Time
	mutex       sync.Mutex
}

func (mtp *mockTimeProvider) Now() time.Time {
	mtp.mutex.Lock()
	defer mtp.mutex.Unlock()
	return mtp.currentTime
}

func (mtp *mockTimeProvider) Add(d time.Duration) {
	mtp.mutex.Lock()
	mtp.currentTime = mtp.currentTime.Add(d)
	mtp.mutex.Unlock()
}

func TestConcurrentRunStoreOperations(t *testing.T) {
	startTime := time.Now()
	mtp := &mockTimeProvider{currentTime: startTime}
	timeProvider = mtp
	defer func() { timeProvider = &realTimeProvider{} }()

	threshold := 5 * time.Minute
	cleanupInterval := 100 * time.Millisecond

	StartRunStoreCleanup(threshold, cleanupInterval)
	defer StopRunStoreCleanup()

	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			addRandomRun(mtp.Now())
		}()
	}

	for i := 0; i < 10; i++ {
		mtp.Add(cleanupInterval)
		time.Sleep(10 * time.Millisecond)

		for j := 0; j < 100; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				addRandomRun(mtp.Now())
			}()
		}
	}

	wg.Wait()

	mtp.Add(threshold + time.Second)
	performCleanup(threshold)

	RunStore.RLock()
	defer RunStore.RUnlock()
	for _, run := range RunStore.Runs {
		completedAt, _ := time.Parse(time.RFC3339, run.CompletedAt)
		if mtp.Now().Sub(completedAt) > threshold {
			t.Errorf("Found expired run that should have been cleaned up: %v", run.ID)
		}
	}
}

func TestGetRunReturnsCopy(t *testing.T) {
	result := pipeline_type.NewProcessingResult("dog.png", time.Now())
	result.CloudinaryURL = pipeline_type.StringPtr("https://example.com/dog.png")
	AddRun(result)

	stored, ok := GetRun(result.ID)
	if !ok {
		t.Fatalf("Expected run %s to be stored", result.ID)
	}
	*stored.CloudinaryURL = "mutated"

	again, _ := GetRun(result.ID)
	if pipeline_type.Deref(again.CloudinaryURL) != "https://example.com/dog.png" {
		t.Errorf("Expected stored run to be unaffected by caller mutation, got %q", pipeline_type.Deref(again.CloudinaryURL))
	}

	if _, ok := GetRun("missing"); ok {
		t.Error("Expected unknown run id to be absent")
	}
}

func addRandomRun(now time.Time) {
	completedAt := now.Add(-time.Duration(rand.Intn(600)) * time.Second)
	result := &pipeline_type.ProcessingResult{
		ID:          fmt.Sprintf("run_%d", rand.Int()),
		Status:      pipeline_type.StatusCompleted,
		CompletedAt: completedAt.Format(time.RFC3339),
	}
	AddRun(result)
}

func TestPerformCleanupExpiresByTimeProvider(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	timeProvider = &mockTimeProvider{currentTime: now}
	defer func() { timeProvider = &realTimeProvider{} }()

	stale := pipeline_type.NewProcessingResult("old.png", now.Add(-2*time.Hour))
	stale.Complete(now.Add(-2 * time.Hour))
	fresh := pipeline_type.NewProcessingResult("new.png", now.Add(-time.Minute))
	fresh.Complete(now.Add(-time.Minute))
	AddRun(stale)
	AddRun(fresh)

	performCleanup(time.Hour)

	if _, ok := GetRun(stale.ID); ok {
		t.Errorf("Expected run completed two hours ago to be expired")
	}
	if _, ok := GetRun(fresh.ID); !ok {
		t.Errorf("Expected run completed a minute ago to be kept")
	}
}
