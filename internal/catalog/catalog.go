// Package catalog serves university programs and student profiles from a
// YAML file.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/mpm/stuplan/internal/conversation"
)

// ErrStudentNotFound is returned when no profile exists for a student.
var ErrStudentNotFound = errors.New("student not found")

// Program is an academic program offered by a university.
type Program struct {
	ID            int                      `yaml:"id" json:"id"`
	UniversityID  int                      `yaml:"university_id" json:"universityId"`
	Name          string                   `yaml:"name" json:"name"`
	Type          conversation.ProgramType `yaml:"type" json:"type"`
	TargetCredits int                      `yaml:"target_credits" json:"targetCredits,omitempty"`
}

// Student is a stored student profile.
type Student struct {
	ID            string                   `yaml:"id" json:"id"`
	UniversityID  int                      `yaml:"university_id" json:"universityId"`
	StudentType   conversation.StudentType `yaml:"student_type" json:"studentType"`
	EstGradDate   string                   `yaml:"est_grad_date" json:"estGradDate,omitempty"`
	EstGradSem    string                   `yaml:"est_grad_sem" json:"estGradSem,omitempty"`
	AdmissionYear int                      `yaml:"admission_year" json:"admissionYear,omitempty"`
	IsTransfer    string                   `yaml:"is_transfer" json:"isTransfer,omitempty"`
	HasCourses    bool                     `yaml:"has_courses" json:"hasCourses"`
}

type file struct {
	Programs []Program `yaml:"programs"`
	Students []Student `yaml:"students"`
}

type programKey struct {
	university int
	id         int
}

// Catalog is a read-only lookup of programs and students.
type Catalog struct {
	programs map[programKey]Program
	students map[string]Student
}

// New builds a catalog from programs and students. Later duplicates win.
func New(programs []Program, students []Student) *Catalog {
	c := &Catalog{
		programs: make(map[programKey]Program, len(programs)),
		students: make(map[string]Student, len(students)),
	}
	for _, p := range programs {
		c.programs[programKey{p.UniversityID, p.ID}] = p
	}
	for _, s := range students {
		c.students[s.ID] = s
	}
	return c
}

// Empty returns a catalog with no entries.
func Empty() *Catalog {
	return New(nil, nil)
}

// Parse reads a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	for i, p := range f.Programs {
		if p.ID == 0 {
			return nil, fmt.Errorf("parse catalog: program %d has no id", i)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("parse catalog: program %d has no name", p.ID)
		}
	}
	for i, s := range f.Students {
		if s.ID == "" {
			return nil, fmt.Errorf("parse catalog: student %d has no id", i)
		}
	}
	return New(f.Programs, f.Students), nil
}

// Load reads a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Program returns a program by university and ID.
func (c *Catalog) Program(universityID, id int) (Program, bool) {
	p, ok := c.programs[programKey{universityID, id}]
	return p, ok
}

// Programs lists a university's programs ordered by ID.
func (c *Catalog) Programs(universityID int) []Program {
	var out []Program
	for k, p := range c.programs {
		if k.university == universityID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ProgramNames returns the names of the known programs among ids.
func (c *Catalog) ProgramNames(_ context.Context, universityID int, ids []int) (map[int]string, error) {
	names := make(map[int]string, len(ids))
	for _, id := range ids {
		if p, ok := c.Program(universityID, id); ok {
			names[id] = p.Name
		}
	}
	return names, nil
}

// TargetCredits returns the credit target of each known program among ids.
func (c *Catalog) TargetCredits(_ context.Context, universityID int, ids []int) (map[int]int, error) {
	targets := make(map[int]int, len(ids))
	for _, id := range ids {
		if p, ok := c.Program(universityID, id); ok && p.TargetCredits > 0 {
			targets[id] = p.TargetCredits
		}
	}
	return targets, nil
}

// Student returns the profile for id, or ErrStudentNotFound.
func (c *Catalog) Student(_ context.Context, id string) (Student, error) {
	s, ok := c.students[id]
	if !ok {
		return Student{}, fmt.Errorf("%w: %s", ErrStudentNotFound, id)
	}
	return s, nil
}
