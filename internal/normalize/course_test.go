package normalize

import (
	"testing"

	"portalbridge/internal/extract"

	"github.com/stretchr/testify/require"
)

func score(v float64) *float64 { return &v }

func TestProgressPercentage(t *testing.T) {
	require.Equal(t, 75, progressPercentage(3, 4))
	require.Equal(t, 0, progressPercentage(0, 0))
	require.Equal(t, 100, progressPercentage(4, 4))
	require.Equal(t, 33, progressPercentage(1, 3))
}

func TestAverageScore(t *testing.T) {
	got := averageScore([]ReportDetail{
		{Score: score(80), Progress: 100},
		{Score: nil, Progress: 100},
		{Score: score(60), Progress: 50},
	})
	require.NotNil(t, got)
	require.Equal(t, 80, *got)

	require.Nil(t, averageScore(nil))
	require.Nil(t, averageScore([]ReportDetail{{Score: nil, Progress: 100}}))
	require.Nil(t, averageScore([]ReportDetail{{Score: score(90), Progress: 50}}))
}

func TestCourseFromComputedFields(t *testing.T) {
	record := extract.Record{
		"subjectCode":       "MATH101",
		"subjectName":       "Mathematics I",
		"subjectStatus":     float64(2),
		"acquisitionStatus": float64(3),
		"report":            map[string]any{"count": float64(3), "allCount": float64(4)},
		"attendance":        map[string]any{"count": float64(10), "allCount": float64(12)},
		"reportDetails": []any{
			map[string]any{"name": "Report 1", "score": float64(85), "progress": float64(100)},
			map[string]any{"name": "Report 2", "progress": float64(40)},
		},
	}

	course := CourseFrom(record, 2024, 1, "first")

	require.Equal(t, 2024, course.Year)
	require.Equal(t, "first", course.Term)
	require.Equal(t, "MATH101", course.SubjectCode)
	require.Equal(t, 3, course.ReportCompleted)
	require.Equal(t, 4, course.ReportTotal)
	require.Equal(t, 75, course.ProgressPercentage)
	require.Equal(t, 10, course.AttendanceCount)
	require.True(t, course.Completed)
	require.True(t, course.InProgress)

	require.NotNil(t, course.AverageScore)
	require.Equal(t, 85, *course.AverageScore)

	require.Len(t, course.ReportDetails, 2)
	require.Nil(t, course.ReportDetails[1].Score)
}

func TestCourseNoReportsYet(t *testing.T) {
	course := CourseFrom(extract.Record{"subjectName": "Art", "subjectStatus": float64(4)}, 2024, 1, "first")

	require.Equal(t, 0, course.ProgressPercentage)
	require.Nil(t, course.AverageScore)
	require.False(t, course.Completed)
	require.False(t, course.InProgress)
}

func TestCoursesFlattensTermYears(t *testing.T) {
	records := []extract.Record{
		{
			"year": float64(2023), "grade": float64(1), "term": "second",
			"courses": []any{
				map[string]any{"subjectName": "History"},
			},
		},
		{
			"year": float64(2024), "grade": float64(2), "semester": "first",
			"subjects": []any{
				map[string]any{"subjectName": "Physics"},
				map[string]any{"subjectName": "Chemistry"},
			},
		},
		{"year": float64(2025)}, // no course array at all
	}

	courses := Courses(records)

	require.Len(t, courses, 3)
	require.Equal(t, "History", courses[0].SubjectName)
	require.Equal(t, 2023, courses[0].Year)
	require.Equal(t, "Physics", courses[1].SubjectName)
	require.Equal(t, "first", courses[1].Term)
	require.Equal(t, 2, courses[2].Grade)
}
