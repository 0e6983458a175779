package logger_test

import (
	"testing"

	"github.com/jsbuild/bundlecore/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestMsgIDStrings(t *testing.T) {
	ids := []logger.MsgID{
		logger.MsgID_CircularDependency,
		logger.MsgID_MissingExport,
		logger.MsgID_NonExistentExport,
		logger.MsgID_UnusedExternalImport,
		logger.MsgID_DeprecatedFeature,
		logger.MsgID_ManualChunkConflict,
	}
	for _, id := range ids {
		assert.NotEmpty(t, id.String())
	}
	assert.Empty(t, logger.MsgID_None.String())
}

func TestDeferLogCollectsInOrder(t *testing.T) {
	log := logger.NewDeferLog()
	log.AddWarning(nil, logger.Loc{}, "b")
	log.AddWarning(nil, logger.Loc{}, "a")
	msgs := log.Done()
	assert.Len(t, msgs, 2)
	assert.False(t, log.HasErrors())
}

func TestDeferLogHasErrors(t *testing.T) {
	log := logger.NewDeferLog()
	log.AddError(nil, logger.Loc{}, "boom")
	assert.True(t, log.HasErrors())
}
