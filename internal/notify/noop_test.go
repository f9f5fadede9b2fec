package notify

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	domain "github.com/donaldgifford/buybox/pkg/types"
)

func TestNoOpNotifier_SendOverrideEvent(t *testing.T) {
	t.Parallel()

	n := NewNoOpNotifier(slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := n.SendOverrideEvent(context.Background(), &OverrideEvent{
		Action:    OverrideSet,
		ProductID: "p1",
		Override:  &domain.Override{ProductID: "p1", OfferID: "o1"},
	})
	require.NoError(t, err)
}

func TestNoOpNotifier_NilLogger(t *testing.T) {
	t.Parallel()

	n := NewNoOpNotifier(nil)
	err := n.SendOverrideEvent(context.Background(), &OverrideEvent{Action: OverrideCleared, ProductID: "p1"})
	require.NoError(t, err)
}

// compile-time interface checks.
var (
	_ Notifier = (*NoOpNotifier)(nil)
	_ Notifier = (*DiscordNotifier)(nil)
)
