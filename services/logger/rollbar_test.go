package logsvc

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/user"
)

func Test_keyvals(t *testing.T) {
	usr := user.User{ID: "42", Username: "ada"}
	got := keyvals("placed", []interface{}{
		errors.New("boom"),
		map[string]interface{}{"version": 2, "admin_id": "7"},
		usr,
		3.5,
	})
	assert.Equal(t, []interface{}{
		"msg", "placed",
		"err", "boom",
		"admin_id", "7",
		"version", 2,
		"user", "ada",
		"user_id", "42",
		"extra", "3.5",
	}, got)
}

func TestRollbarLogger(t *testing.T) {
	conf := core.NewTestConfig()
	var buf bytes.Buffer
	logger := NewRollbarLogger(&buf, "TEST", conf)

	logger.Info("regulation changed", map[string]interface{}{"version": 3})
	assert.Contains(t, buf.String(), "level=info")
	assert.Contains(t, buf.String(), "component=TEST")
	assert.Contains(t, buf.String(), `msg="regulation changed"`)
	assert.Contains(t, buf.String(), "version=3")

	buf.Reset()
	logger.Debug("hidden")
	if conf.Debug {
		assert.Contains(t, buf.String(), "hidden")
	} else {
		assert.Empty(t, buf.String())
	}

	var code int
	logger.exit = func(c int) { code = c }
	logger.Fatal("cannot open db", errors.New("refused"))
	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "level=error")
	assert.Contains(t, buf.String(), "err=refused")
}
