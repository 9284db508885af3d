package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "type": "object",
  "required": ["jobId", "payload"],
  "properties": {
    "jobId": {"type": "string", "minLength": 1},
    "payload": {
      "type": "object",
      "required": ["message"],
      "properties": {"message": {"type": "string"}}
    }
  }
}`

func TestSchema_ValidateDocument(t *testing.T) {
	s, err := CompileSchema(testSchema)
	require.NoError(t, err)

	t.Run("valid", func(t *testing.T) {
		res := s.ValidateDocument([]byte(`{"jobId":"1","payload":{"message":"hi"}}`))
		assert.True(t, res.Valid)
		assert.Empty(t, res.Errors)
	})

	t.Run("missing nested field", func(t *testing.T) {
		res := s.ValidateDocument([]byte(`{"jobId":"1","payload":{}}`))
		assert.False(t, res.Valid)
		assert.True(t, res.HasErrors("payload"))
		assert.Contains(t, res.Error(), "message")
	})

	t.Run("not json", func(t *testing.T) {
		res := s.ValidateDocument([]byte(`{not json`))
		assert.False(t, res.Valid)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, "INVALID_JSON", res.Errors[0].Code)
	})
}

func TestSchema_ValidateGoValue(t *testing.T) {
	s := MustCompileSchema(testSchema)
	res := s.Validate(map[string]interface{}{"jobId": ""})
	assert.False(t, res.Valid)
	assert.Len(t, res.GetErrorMessages(), 2)
}

func TestCompileSchema_Invalid(t *testing.T) {
	_, err := CompileSchema(`{"type": 12}`)
	assert.Error(t, err)
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("ops@example.com"))
	assert.False(t, ValidateEmail("not-an-address"))
}

func TestValidatePhone(t *testing.T) {
	assert.True(t, ValidatePhone("+14155550100"))
	assert.False(t, ValidatePhone("4155550100"))
	assert.False(t, ValidatePhone("+0123"))
}
