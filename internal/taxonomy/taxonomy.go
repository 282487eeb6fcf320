package taxonomy

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Subject is a named category with the description used as zero-shot context
type Subject struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// DefaultSubjects is the built-in taxonomy, in candidate-label order
var DefaultSubjects = []Subject{
	{"mathematics", "mathematical equations, formulas, calculations, algebra, calculus, geometry, trigonometry, statistics"},
	{"physics", "physical laws, mechanics, thermodynamics, electromagnetism, quantum physics, forces, energy, motion"},
	{"chemistry", "chemical reactions, molecular structures, periodic table, organic chemistry, inorganic chemistry, biochemistry"},
	{"biology", "living organisms, cells, genetics, evolution, anatomy, physiology, ecology, microbiology"},
	{"computer_science", "programming, algorithms, data structures, software development, computer systems, databases, networks"},
	{"history", "historical events, dates, people, civilizations, wars, political movements, cultural developments"},
	{"literature", "books, authors, poems, novels, literary analysis, writing, storytelling, language arts"},
	{"geography", "maps, countries, cities, physical features, climate, population, cultural geography"},
	{"economics", "economic theories, markets, supply and demand, financial concepts, business, trade, money"},
	{"psychology", "human behavior, mental processes, cognitive psychology, social psychology, neuroscience"},
	{"philosophy", "philosophical concepts, logic, ethics, metaphysics, epistemology, moral reasoning"},
	{"art", "artistic techniques, art history, visual arts, design, creativity, aesthetics, cultural expression"},
	{"music", "musical theory, instruments, composers, musical notation, rhythm, harmony, musical history"},
	{"medicine", "medical terminology, anatomy, diseases, treatments, healthcare, pharmacology, clinical practice"},
	{"engineering", "technical design, mechanical systems, electrical engineering, civil engineering, materials science"},
	{"astronomy", "celestial objects, space, planets, stars, galaxies, cosmology, astrophysics"},
	{"linguistics", "language structure, grammar, phonetics, syntax, semantics, language families, communication"},
	{"political_science", "government, politics, political systems, international relations, public policy, governance"},
	{"sociology", "social structures, human societies, social behavior, cultural patterns, social institutions"},
	{"environmental_science", "environmental issues, ecology, sustainability, climate change, natural resources, conservation"},
}

// Taxonomy is an ordered, append-only set of subjects keyed by lowercase name.
type Taxonomy struct {
	mu           sync.RWMutex
	order        []string
	descriptions map[string]string
}

// New creates a taxonomy holding the given subjects
func New(subjects ...Subject) *Taxonomy {
	t := &Taxonomy{descriptions: make(map[string]string, len(subjects))}
	for _, s := range subjects {
		t.Add(s.Name, s.Description)
	}
	return t
}

// Default returns a taxonomy seeded with DefaultSubjects
func Default() *Taxonomy {
	return New(DefaultSubjects...)
}

// Add inserts or redescribes a subject. Names are lowercased; new names keep
// their insertion position at the end of the label order.
func (t *Taxonomy) Add(name, description string) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.descriptions[key]; !exists {
		t.order = append(t.order, key)
	}
	t.descriptions[key] = description
}

// Labels returns the subject keys in order
func (t *Taxonomy) Labels() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.order...)
}

// Contains reports whether subject is a known key
func (t *Taxonomy) Contains(subject string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.descriptions[subject]
	return ok
}

// Description returns the description of subject, or "Unknown subject"
func (t *Taxonomy) Description(subject string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if d, ok := t.descriptions[subject]; ok {
		return d
	}
	return "Unknown subject"
}

// Subjects returns a copy of all subjects in order
func (t *Taxonomy) Subjects() []Subject {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Subject, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, Subject{Name: name, Description: t.descriptions[name]})
	}
	return out
}

// Len returns the number of subjects
func (t *Taxonomy) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

type taxonomyFile struct {
	Subjects []Subject `yaml:"subjects"`
}

// LoadFile adds every subject listed in a YAML file of the form
//
//	subjects:
//	  - name: law
//	    description: statutes, contracts, courts
func (t *Taxonomy) LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read taxonomy file: %w", err)
	}

	var f taxonomyFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("failed to parse taxonomy file: %w", err)
	}

	added := 0
	for _, s := range f.Subjects {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		t.Add(s.Name, s.Description)
		added++
	}
	return added, nil
}
