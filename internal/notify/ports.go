package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/invisibleacropolis-ops/GIF-hold-sub001/internal/model"
)

// ErrNoReceiver is returned by remote ports when nobody is connected to act
// on a share or copy intent.
var ErrNoReceiver = errors.New("no client connected")

// Clipboard writes text to a clipboard.
type Clipboard interface {
	Copy(text string) error
}

// Sharer opens a share intent. A nil error means the intent was dispatched.
type Sharer interface {
	Share(ctx context.Context, text, title, subject string) error
}

// Toaster displays a transient message.
type Toaster interface {
	Toast(msg model.UiMessage)
}

// ToasterFunc adapts a function to Toaster.
type ToasterFunc func(msg model.UiMessage)

func (f ToasterFunc) Toast(msg model.UiMessage) { f(msg) }

// Forward shows every message of sub on t until the feed closes.
// It blocks; run it in its own goroutine.
func Forward(sub *Subscription, t Toaster) {
	for msg := range sub.C() {
		t.Toast(msg)
	}
}

// SystemClipboard writes to the host clipboard.
type SystemClipboard struct{}

func (SystemClipboard) Copy(text string) error {
	if clipboard.Unsupported {
		return fmt.Errorf("clipboard not supported on this system")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}
