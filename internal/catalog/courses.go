// Package catalog holds the static course list served by GET /api/courses.
package catalog

import "studyhub/internal/model"

var courses = []model.Course{
	{ID: "c-math-101", Code: "MATH101", Title: "Calculus I", Description: "Limits, derivatives and an introduction to integrals.", Credits: 4, Level: "beginner"},
	{ID: "c-math-201", Code: "MATH201", Title: "Linear Algebra", Description: "Vector spaces, matrices, eigenvalues and linear maps.", Credits: 4, Level: "intermediate"},
	{ID: "c-phys-101", Code: "PHYS101", Title: "Mechanics", Description: "Kinematics, Newton's laws, energy and momentum.", Credits: 4, Level: "beginner"},
	{ID: "c-chem-101", Code: "CHEM101", Title: "General Chemistry", Description: "Atomic structure, bonding and stoichiometry.", Credits: 3, Level: "beginner"},
	{ID: "c-cs-101", Code: "CS101", Title: "Introduction to Programming", Description: "Variables, control flow, functions and basic data structures.", Credits: 4, Level: "beginner"},
	{ID: "c-cs-201", Code: "CS201", Title: "Data Structures and Algorithms", Description: "Lists, trees, graphs, sorting and complexity analysis.", Credits: 4, Level: "intermediate"},
	{ID: "c-cs-301", Code: "CS301", Title: "Operating Systems", Description: "Processes, scheduling, memory management and file systems.", Credits: 4, Level: "advanced"},
	{ID: "c-eng-101", Code: "ENG101", Title: "Academic Writing", Description: "Structuring essays, citing sources and revising drafts.", Credits: 2, Level: "beginner"},
}

// Courses returns a copy of the catalog.
func Courses() []model.Course {
	out := make([]model.Course, len(courses))
	copy(out, courses)
	return out
}
