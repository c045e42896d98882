package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectMLTaskType(t *testing.T) {
	taskType, confidence := detectMLTaskType("please classify these images by detecting their category")
	assert.Equal(t, "classification", taskType)
	assert.Greater(t, confidence, 0.0)

	taskType, confidence = detectMLTaskType("forecast next month's sales regression")
	assert.Equal(t, "regression", taskType)
	assert.Greater(t, confidence, 0.0)

	taskType, confidence = detectMLTaskType("just write some unrelated prose")
	assert.Equal(t, "", taskType)
	assert.Equal(t, 0.0, confidence)
}

func TestExtractDataPath(t *testing.T) {
	path := extractDataPath(`train a model on "sales.csv"`, map[string]any{})
	assert.Equal(t, "sales.csv", path)

	path = extractDataPath("no file mentioned here", map[string]any{"data_path": "preset.csv"})
	assert.Equal(t, "preset.csv", path)
}

func TestExtractTargetColumn(t *testing.T) {
	col := extractTargetColumn("predict: price using the dataset", map[string]any{})
	assert.Equal(t, "price", col)

	col = extractTargetColumn("nothing relevant", map[string]any{"target_column": "label"})
	assert.Equal(t, "label", col)
}
