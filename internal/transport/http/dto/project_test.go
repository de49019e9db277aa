package dto

import (
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUpdateProjectInput_IsEmpty(t *testing.T) {
	zero := 0

	tests := []struct {
		name  string
		in    UpdateProjectInput
		empty bool
	}{
		{name: "nothing", in: UpdateProjectInput{}, empty: true},
		{name: "whitespace only", in: UpdateProjectInput{Title: "  ", Category: "\t"}, empty: true},
		{name: "blank removal ids", in: UpdateProjectInput{DeleteImagePublicIDs: []string{"", " "}}, empty: true},
		{name: "title", in: UpdateProjectInput{Title: "New"}, empty: false},
		{name: "removal id", in: UpdateProjectInput{DeleteImagePublicIDs: []string{"projects/a"}}, empty: false},
		{name: "main index zero", in: UpdateProjectInput{MainImageIndex: &zero}, empty: false},
		{name: "files", in: UpdateProjectInput{Files: []*multipart.FileHeader{{Filename: "a.png"}}}, empty: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.empty, tt.in.IsEmpty())
		})
	}
}

func TestCreateProjectInput_Normalize(t *testing.T) {
	in := CreateProjectInput{Title: "  Villa ", Category: " Architecture "}
	in.Normalize()

	assert.Equal(t, "Villa", in.Title)
	assert.Equal(t, "Architecture", in.Category)
}
