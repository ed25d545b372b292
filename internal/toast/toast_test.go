package toast

import (
	"testing"
	"time"

	"github.com/M7mdkimoo/myrockai/internal/models"
)

func TestPushDefaultsToInfo(t *testing.T) {
	svc := NewService(time.Minute)
	defer svc.Close()

	pushed := svc.Push("saved", "")
	if pushed.Level != models.ToastInfo {
		t.Fatalf("default level = %s, want info", pushed.Level)
	}
	if pushed.ID == "" {
		t.Fatalf("toast missing id")
	}
	if got := svc.Active(); len(got) != 1 || got[0].ID != pushed.ID {
		t.Fatalf("active list wrong: %#v", got)
	}
}

func TestToastAutoExpires(t *testing.T) {
	svc := NewService(20 * time.Millisecond)
	defer svc.Close()

	svc.Push("transient", models.ToastSuccess)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(svc.Active()) == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("toast never expired")
}

func TestDismissBeatsExpiry(t *testing.T) {
	svc := NewService(time.Hour)
	defer svc.Close()

	a := svc.Push("one", models.ToastError)
	b := svc.Push("two", models.ToastWarning)
	svc.Dismiss(a.ID)

	active := svc.Active()
	if len(active) != 1 || active[0].ID != b.ID {
		t.Fatalf("dismiss did not remove toast: %#v", active)
	}
	// Dismissing twice is a no-op.
	svc.Dismiss(a.ID)
}

func TestCloseCancelsAllTimers(t *testing.T) {
	svc := NewService(time.Hour)
	svc.Push("one", models.ToastInfo)
	svc.Push("two", models.ToastInfo)
	svc.Close()

	if got := svc.Active(); len(got) != 0 {
		t.Fatalf("toasts survive close: %#v", got)
	}
	// Push after close must not arm new timers.
	svc.Push("three", models.ToastInfo)
	if got := svc.Active(); len(got) != 0 {
		t.Fatalf("push after close leaked: %#v", got)
	}
}
