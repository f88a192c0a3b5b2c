package progress

import (
	"math"

	"studytrail/internal/models"
)

// Completion weights of a topic
const (
	quizWeight  = 80
	essayWeight = 20
)

// Evaluator derives completion, accuracy and reward eligibility from a record
// and the catalog. It never modifies the record.
type Evaluator struct {
	catalog *models.Catalog
}

// NewEvaluator creates an evaluator over the catalog
func NewEvaluator(catalog *models.Catalog) *Evaluator {
	return &Evaluator{catalog: catalog}
}

// TopicCompletion returns the rounded completion percentage of a topic:
// correct quizzes carry 80%, a submitted essay 20%. A topic without quizzes,
// or one missing from the catalog, is 0.
func (e *Evaluator) TopicCompletion(p *models.CurriculumProgress, topicID string) int {
	topic, ok := e.catalog.FindTopic(topicID)
	if !ok || len(topic.Quizzes) == 0 {
		return 0
	}
	return int(math.Round(e.topicCompletion(p, topic)))
}

func (e *Evaluator) topicCompletion(p *models.CurriculumProgress, topic *models.Topic) float64 {
	tp := topicProgress(p, topic.ID)
	if tp == nil {
		return 0
	}

	correct := 0
	for _, quiz := range topic.Quizzes {
		if attempt := tp.QuizAttempts[quiz.ID]; attempt != nil && attempt.Correct {
			correct++
		}
	}

	completion := float64(correct) / float64(len(topic.Quizzes)) * quizWeight
	if tp.EssaySubmitted {
		completion += essayWeight
	}
	return completion
}

// LessonCompletion is the mean completion of the lesson's active topics
func (e *Evaluator) LessonCompletion(p *models.CurriculumProgress, lessonID string) int {
	lesson, ok := e.catalog.FindLesson(lessonID)
	if !ok {
		return 0
	}
	return int(math.Round(e.lessonCompletion(p, lesson)))
}

func (e *Evaluator) lessonCompletion(p *models.CurriculumProgress, lesson *models.Lesson) float64 {
	var values []int
	for i := range lesson.Topics {
		if lesson.Topics[i].Active {
			values = append(values, e.TopicCompletion(p, lesson.Topics[i].ID))
		}
	}
	return mean(values)
}

// CurriculumCompletion is the mean completion of the active lessons
func (e *Evaluator) CurriculumCompletion(p *models.CurriculumProgress) int {
	if e.catalog == nil {
		return 0
	}
	var values []int
	for i := range e.catalog.Lessons {
		if e.catalog.Lessons[i].Active {
			values = append(values, e.LessonCompletion(p, e.catalog.Lessons[i].ID))
		}
	}
	return int(math.Round(mean(values)))
}

// Accuracy is the share of attempted quizzes that were answered correctly, in
// [0, 1]. An empty topicID covers every topic. Quizzes never attempted count
// towards neither side, and no attempts at all yields 0.
func (e *Evaluator) Accuracy(p *models.CurriculumProgress, topicID string) float64 {
	if p == nil {
		return 0
	}

	attempted, correct := 0, 0
	count := func(tp *models.TopicProgress) {
		if tp == nil {
			return
		}
		for _, attempt := range tp.QuizAttempts {
			if attempt == nil || attempt.Attempts <= 0 {
				continue
			}
			attempted++
			if attempt.Correct {
				correct++
			}
		}
	}

	if topicID == "" {
		for _, tp := range p.Topics {
			count(tp)
		}
	} else {
		count(p.Topics[topicID])
	}

	if attempted == 0 {
		return 0
	}
	return float64(correct) / float64(attempted)
}

// RewardUnlockable reports whether every quiz of the topic is correct and the
// submitted essay meets the topic's minimum length
func (e *Evaluator) RewardUnlockable(p *models.CurriculumProgress, topicID string) bool {
	topic, ok := e.catalog.FindTopic(topicID)
	if !ok {
		return false
	}
	tp := topicProgress(p, topicID)
	if tp == nil {
		return false
	}

	for _, quiz := range topic.Quizzes {
		attempt := tp.QuizAttempts[quiz.ID]
		if attempt == nil || !attempt.Correct {
			return false
		}
	}
	return tp.EssaySubmitted && tp.EssayCharCount >= topic.Essay.MinCharacters
}

func topicProgress(p *models.CurriculumProgress, topicID string) *models.TopicProgress {
	if p == nil {
		return nil
	}
	return p.Topics[topicID]
}

func mean(values []int) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0
	for _, v := range values {
		sum += v
	}
	return float64(sum) / float64(len(values))
}
