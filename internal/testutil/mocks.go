package testutil

import (
	"testing"

	"go.uber.org/mock/gomock"
)

// NewMockController creates a gomock controller that verifies its
// expectations when the test finishes.
func NewMockController(t *testing.T) *gomock.Controller {
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	return ctrl
}
