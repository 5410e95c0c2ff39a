package phy_test

import (
	"io"
	"os"
	"testing"

	"github.com/gen2brain/aout/internal/logger"
)

func TestMain(m *testing.M) {
	logger.InitWithWriter(io.Discard, "DEBUG", "text")

	os.Exit(m.Run())
}
