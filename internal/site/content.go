// Package site holds the public marketing site's content and templates.
package site

import (
	"embed"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed content.yaml
var defaultContent []byte

//go:embed views
var views embed.FS

// Views returns the template tree rooted at views/.
func Views() fs.FS {
	sub, err := fs.Sub(views, "views")
	if err != nil {
		panic(err)
	}
	return sub
}

type Content struct {
	Hero         Hero          `yaml:"hero"`
	Mission      Mission       `yaml:"mission"`
	About        About         `yaml:"about"`
	Services     []Service     `yaml:"services"`
	Awards       []Award       `yaml:"awards"`
	Testimonials []Testimonial `yaml:"testimonials"`
	Projects     []Project     `yaml:"projects"`
	Contact      Contact       `yaml:"contact"`
}

type Hero struct {
	Title        string `yaml:"title"`
	Tagline      string `yaml:"tagline"`
	CallToAction string `yaml:"call_to_action"`
}

type Mission struct {
	Statement string `yaml:"statement"`
	Stats     []Stat `yaml:"stats"`
}

type Stat struct {
	Label  string `yaml:"label"`
	Value  int    `yaml:"value"`
	Suffix string `yaml:"suffix"`
}

type About struct {
	Summary string  `yaml:"summary"`
	Skills  []Skill `yaml:"skills"`
}

type Skill struct {
	Name  string `yaml:"name"`
	Level int    `yaml:"level"`
}

type Service struct {
	ID          string `yaml:"id"`
	Label       string `yaml:"label"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type Award struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

type Testimonial struct {
	Name    string `yaml:"name"`
	Role    string `yaml:"role"`
	Company string `yaml:"company"`
	Content string `yaml:"content"`
	Rating  int    `yaml:"rating"`
}

type Project struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Image       string   `yaml:"image"`
	Tags        []string `yaml:"tags"`
	LiveURL     string   `yaml:"live_url"`
	GithubURL   string   `yaml:"github_url"`
	Featured    bool     `yaml:"featured"`
}

type Contact struct {
	Heading string `yaml:"heading"`
	Email   string `yaml:"email"`
}

// ProjectFilter selects which portfolio projects are listed.
type ProjectFilter string

const (
	ProjectFilterAll      ProjectFilter = "all"
	ProjectFilterFeatured ProjectFilter = "featured"
)

// ParseProjectFilter maps a query value to a filter; unknown values mean all.
func ParseProjectFilter(v string) ProjectFilter {
	if ProjectFilter(v) == ProjectFilterFeatured {
		return ProjectFilterFeatured
	}
	return ProjectFilterAll
}

// LoadContent reads content from path, or the built-in document when path is empty.
func LoadContent(path string) (*Content, error) {
	data := defaultContent
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read site content: %w", err)
		}
		data = raw
	}
	var content Content
	if err := yaml.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("parse site content: %w", err)
	}
	return &content, nil
}

// FilterProjects returns the projects matching filter in document order.
func (c *Content) FilterProjects(filter ProjectFilter) []Project {
	if filter != ProjectFilterFeatured {
		return c.Projects
	}
	out := make([]Project, 0, len(c.Projects))
	for _, p := range c.Projects {
		if p.Featured {
			out = append(out, p)
		}
	}
	return out
}
