package passkey

import (
	"errors"
	"fmt"
	"testing"
)

func TestServerError_UnwrapsToErrServer(t *testing.T) {
	err := error(&ServerError{Message: "duplicate email"})

	if !errors.Is(err, ErrServer) {
		t.Error("ServerError does not match ErrServer")
	}

	var serverErr *ServerError
	if !errors.As(fmt.Errorf("ceremony failed: %w", err), &serverErr) {
		t.Fatal("wrapped ServerError not recoverable with errors.As")
	}
	if serverErr.Message != "duplicate email" {
		t.Errorf("Message = %q, want duplicate email", serverErr.Message)
	}
}

func TestServerError_EmptyMessage(t *testing.T) {
	err := &ServerError{}
	if err.Error() != ErrServer.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), ErrServer.Error())
	}
}

func TestSentinelsAreDistinct(t *testing.T) {
	sentinels := []error{
		ErrValidation, ErrNetwork, ErrServer, ErrUserCancelled,
		ErrAuthenticator, ErrNoCredential, ErrServerRejected, ErrBusy,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j && errors.Is(a, b) {
				t.Errorf("sentinel %v matches %v", a, b)
			}
		}
	}
}
