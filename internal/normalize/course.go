package normalize

import (
	"math"

	"portalbridge/internal/extract"
)

// status code sentinels observed from the portal's course API. They are
// package-level so tests and diagnostics can reference them by name.
const (
	// AcquisitionAcquired marks a course whose credit has been granted.
	AcquisitionAcquired = 3
)

// ActiveSubjectStatuses are the two codes the portal uses for a course
// the student is currently taking.
var ActiveSubjectStatuses = []int{1, 2}

// ReportDetail is one report assignment inside a course. Score is nil when
// the portal has not scored the item.
type ReportDetail struct {
	Name     string   `json:"name,omitempty"`
	Score    *float64 `json:"score"`
	Progress int      `json:"progress"`
}

// CourseRecord is the canonical course entity, flattened from the portal's
// nested term-year structure and enriched with computed fields.
type CourseRecord struct {
	Year  int    `json:"year,omitempty"`
	Grade int    `json:"grade,omitempty"`
	Term  string `json:"term,omitempty"`

	CurriculumCode string `json:"curriculumCode,omitempty"`
	CurriculumName string `json:"curriculumName,omitempty"`
	SubjectCode    string `json:"subjectCode,omitempty"`
	SubjectName    string `json:"subjectName,omitempty"`

	SubjectStatus     int    `json:"subjectStatus"`
	AcquisitionStatus int    `json:"acquisitionStatus"`
	ExamStatus        string `json:"examStatus,omitempty"`
	Outcome           string `json:"outcome,omitempty"`

	ReportCompleted int            `json:"reportCompleted"`
	ReportTotal     int            `json:"reportTotal"`
	ReportDetails   []ReportDetail `json:"reportDetails,omitempty"`

	AttendanceCount int `json:"attendanceCount"`
	AttendanceTotal int `json:"attendanceTotal"`

	// computed
	ProgressPercentage int  `json:"progressPercentage"`
	AverageScore       *int `json:"averageScore,omitempty"`
	Completed          bool `json:"completed"`
	InProgress         bool `json:"inProgress"`
}

// progressPercentage guards against the zero-total case, which the portal
// produces for courses with no report items yet.
func progressPercentage(completed, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

// averageScore is the rounded mean over report details that are both
// scored and fully complete; nil when none qualify.
func averageScore(details []ReportDetail) *int {
	var sum float64
	var n int
	for _, d := range details {
		if d.Score == nil || d.Progress != 100 {
			continue
		}
		sum += *d.Score
		n++
	}
	if n == 0 {
		return nil
	}
	avg := int(math.Round(sum / float64(n)))
	return &avg
}

func reportDetailsFrom(record extract.Record) []ReportDetail {
	arr, ok := record["reportDetails"].([]any)
	if !ok {
		return nil
	}
	details := make([]ReportDetail, 0, len(arr))
	for _, item := range arr {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		detail := ReportDetail{}
		detail.Name, _ = stringField(obj, "name", "title")
		if score, ok := obj["score"].(float64); ok {
			detail.Score = &score
		}
		detail.Progress, _ = intField(obj, "progress", "completion")
		details = append(details, detail)
	}
	return details
}

func counters(record extract.Record, key string) (count, total int) {
	obj, ok := record[key].(map[string]any)
	if !ok {
		return 0, 0
	}
	count, _ = intField(obj, "count", "completed")
	total, _ = intField(obj, "allCount", "total")
	return count, total
}

// CourseFrom maps one recovered course record, attaching the parent
// term-year's fields and computing the derived values.
func CourseFrom(record extract.Record, year, grade int, term string) CourseRecord {
	course := CourseRecord{
		Year:  year,
		Grade: grade,
		Term:  term,
	}

	course.CurriculumCode, _ = stringField(record, "curriculumCode", "curriculum_cd")
	course.CurriculumName, _ = stringField(record, "curriculumName", "curriculum")
	course.SubjectCode, _ = stringField(record, "subjectCode", "subject_cd", "code")
	course.SubjectName, _ = stringField(record, "subjectName", "subject", "name")
	course.SubjectStatus, _ = intField(record, "subjectStatus", "status")
	course.AcquisitionStatus, _ = intField(record, "acquisitionStatus", "acquisition")
	course.ExamStatus, _ = stringField(record, "examStatus")
	course.Outcome, _ = stringField(record, "outcome", "grade", "evaluation")

	course.ReportCompleted, course.ReportTotal = counters(record, "report")
	course.ReportDetails = reportDetailsFrom(record)
	course.AttendanceCount, course.AttendanceTotal = counters(record, "attendance")

	course.ProgressPercentage = progressPercentage(course.ReportCompleted, course.ReportTotal)
	course.AverageScore = averageScore(course.ReportDetails)
	course.Completed = course.AcquisitionStatus == AcquisitionAcquired
	for _, status := range ActiveSubjectStatuses {
		if course.SubjectStatus == status {
			course.InProgress = true
			break
		}
	}

	return course
}

// Courses flattens the portal's term-year -> course-list structure into a
// single list. Each element of records is one term-year carrying its own
// course array.
func Courses(records []extract.Record) []CourseRecord {
	var courses []CourseRecord
	for _, termYear := range records {
		year, _ := intField(termYear, "year")
		grade, _ := intField(termYear, "grade")
		term, _ := stringField(termYear, "term", "semester")

		arr, ok := termYear["courses"].([]any)
		if !ok {
			// some releases use the generic container key instead
			arr, ok = termYear["subjects"].([]any)
			if !ok {
				continue
			}
		}
		for _, item := range arr {
			obj, ok := item.(map[string]any)
			if !ok {
				continue
			}
			courses = append(courses, CourseFrom(obj, year, grade, term))
		}
	}
	return courses
}
