package models

// Catalog is the static, read-only content catalog
type Catalog struct {
	Lessons []Lesson `yaml:"lessons" json:"lessons"`
}

// Lesson groups topics; inactive lessons are excluded from curriculum completion
type Lesson struct {
	ID     string  `yaml:"id" json:"id"`
	Title  string  `yaml:"title" json:"title"`
	Active bool    `yaml:"active" json:"active"`
	Topics []Topic `yaml:"topics" json:"topics"`
}

// Topic is a unit of content with quizzes and an essay prompt
type Topic struct {
	ID      string `yaml:"id" json:"id"`
	Title   string `yaml:"title" json:"title"`
	Active  bool   `yaml:"active" json:"active"`
	Quizzes []Quiz `yaml:"quizzes" json:"quizzes"`
	Essay   Essay  `yaml:"essay" json:"essay"`
}

// Quiz identifies a single quiz within a topic
type Quiz struct {
	ID       string `yaml:"id" json:"id"`
	Question string `yaml:"question" json:"question"`
}

// Essay describes the essay requirement of a topic
type Essay struct {
	Prompt        string `yaml:"prompt" json:"prompt"`
	MinCharacters int    `yaml:"min_characters" json:"minCharacters"`
}

// FindTopic looks a topic up by id across all lessons
func (c *Catalog) FindTopic(id string) (*Topic, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Lessons {
		for j := range c.Lessons[i].Topics {
			if c.Lessons[i].Topics[j].ID == id {
				return &c.Lessons[i].Topics[j], true
			}
		}
	}
	return nil, false
}

// FindLesson looks a lesson up by id
func (c *Catalog) FindLesson(id string) (*Lesson, bool) {
	if c == nil {
		return nil, false
	}
	for i := range c.Lessons {
		if c.Lessons[i].ID == id {
			return &c.Lessons[i], true
		}
	}
	return nil, false
}

// HasQuiz reports whether the topic contains the quiz id
func (t *Topic) HasQuiz(id string) bool {
	for _, quiz := range t.Quizzes {
		if quiz.ID == id {
			return true
		}
	}
	return false
}
