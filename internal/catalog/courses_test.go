package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCoursesReturnsCopy(t *testing.T) {
	list := Courses()
	assert.NotEmpty(t, list)

	list[0].Title = "changed"
	assert.NotEqual(t, "changed", Courses()[0].Title)
}

func TestCourseIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for _, c := range Courses() {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
}
