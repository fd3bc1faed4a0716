package transport

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/dailyquest/domain"
)

func TestEnvelopeBodies(t *testing.T) {
	ok, err := json.Marshal(NewSuccess([]string{"a"}, PageMeta{Limit: 1, Count: 1}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","data":["a"],"meta":{"limit":1,"offset":0,"count":1}}`, string(ok))

	failed, err := json.Marshal(NewError(domain.ErrCodeLimitReached, "daily validation limit reached", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"error","code":"LIMIT_REACHED","error":"daily validation limit reached"}`, string(failed))

	degraded := NewError(CodeDegraded, "dependencies unhealthy", map[string]bool{"redis": false})
	assert.Equal(t, StatusError, degraded.Status)
	assert.Equal(t, "DEGRADED", degraded.Code)
	assert.NotNil(t, degraded.Meta)
}
