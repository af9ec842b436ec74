package camunda

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "hajj-assistant/internal/common/errors"
	"hajj-assistant/pkg/registry"
)

func TestCheckVariables(t *testing.T) {
	reg, err := registry.LoadRegistry("../../../configs/activity-registry.json")
	require.NoError(t, err)
	activity, err := reg.Find("query-agencies")
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		err := CheckVariables(activity, map[string]interface{}{"queryType": "registry_stats"})
		assert.NoError(t, err)
	})

	t.Run("unknown query type", func(t *testing.T) {
		err := CheckVariables(activity, map[string]interface{}{"queryType": "everything"})
		require.Error(t, err)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSchemaValidation))

		stdErr, _ := apperrors.AsStandard(err)
		assert.Contains(t, stdErr.Details, "query-agencies")
		assert.False(t, stdErr.Retryable)
	})

	t.Run("missing required", func(t *testing.T) {
		err := CheckVariables(activity, map[string]interface{}{})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeSchemaValidation))
	})
}
