package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapAndTee(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	rec := &Recorder{}

	sink := Tee(Zap(zap.New(core)), rec, nil)
	sink.Report("Requested to Reset player All with request version of 1")

	assert.Equal(t, []string{"Requested to Reset player All with request version of 1"}, rec.Lines())
	assert.Equal(t, 1, logs.FilterMessage("Requested to Reset player All with request version of 1").Len())
}
