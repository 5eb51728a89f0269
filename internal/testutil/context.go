package testutil

import (
	"context"
	"testing"
)

// ContextWithCancel создаёт context с cancel и автоматически отменяет его при завершении теста.
// Тесты, которым важен порядок остановки, вызывают cancel сами; повторная
// отмена в cleanup безвредна.
func ContextWithCancel(t testing.TB) (context.Context, context.CancelFunc) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	return ctx, cancel
}
