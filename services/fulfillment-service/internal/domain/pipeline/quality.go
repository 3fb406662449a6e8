package pipeline

import (
	"time"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// Grading bands
const (
	PassScore           = 90.0
	ConditionalScore    = 70.0
	DefaultMinimumScore = 90.0
	maxSubScore         = 5
	subScoreCount       = 5
)

// QualityStatus represents the status of a quality check
type QualityStatus string

const (
	QualityPending     QualityStatus = "PENDING"
	QualityPassed      QualityStatus = "PASSED"
	QualityConditional QualityStatus = "CONDITIONAL"
	QualityFailed      QualityStatus = "FAILED"
)

// QualityResult is the overall verdict of an inspection
type QualityResult string

const (
	ResultPass        QualityResult = "PASS"
	ResultConditional QualityResult = "CONDITIONAL"
	ResultFail        QualityResult = "FAIL"
)

// CheckType is what an inspection focuses on
type CheckType string

const (
	CheckPackaging           CheckType = "PACKAGING"
	CheckContentVerification CheckType = "CONTENT_VERIFICATION"
	CheckWeight              CheckType = "WEIGHT"
	CheckDimensions          CheckType = "DIMENSIONS"
	CheckSafety              CheckType = "SAFETY"
)

// Scores are the five 1..5 sub-scores of an inspection. Zero means not given.
type Scores struct {
	PackageIntegrity int `bson:"packageIntegrity" json:"packageIntegrity"`
	ContentAccuracy  int `bson:"contentAccuracy" json:"contentAccuracy"`
	LabelAccuracy    int `bson:"labelAccuracy" json:"labelAccuracy"`
	WeightAccuracy   int `bson:"weightAccuracy" json:"weightAccuracy"`
	SafetyCompliance int `bson:"safetyCompliance" json:"safetyCompliance"`
}

func (s Scores) all() []int {
	return []int{s.PackageIntegrity, s.ContentAccuracy, s.LabelAccuracy, s.WeightAccuracy, s.SafetyCompliance}
}

// Validate checks that every sub-score is present and in range
func (s Scores) Validate() error {
	for _, v := range s.all() {
		if v == 0 {
			return ErrScoresRequired
		}
		if v < 1 || v > maxSubScore {
			return ErrInvalidScore
		}
	}
	return nil
}

// Percentage is average(sub-scores) / 5 * 100
func (s Scores) Percentage() float64 {
	sum := 0
	for _, v := range s.all() {
		sum += v
	}
	return float64(sum) / float64(subScoreCount) / maxSubScore * 100
}

// Flags are mandatory defects; any one fails the check
type Flags struct {
	Damaged            bool `bson:"damaged" json:"damaged"`
	ContentIncorrect   bool `bson:"contentIncorrect" json:"contentIncorrect"`
	WeightInaccurate   bool `bson:"weightInaccurate" json:"weightInaccurate"`
	LabelIncorrect     bool `bson:"labelIncorrect" json:"labelIncorrect"`
	HazardNoncompliant bool `bson:"hazardNoncompliant" json:"hazardNoncompliant"`
}

// Any reports whether a mandatory defect was found
func (f Flags) Any() bool {
	return f.Damaged || f.ContentIncorrect || f.WeightInaccurate || f.LabelIncorrect || f.HazardNoncompliant
}

// Inspection is the input of CompleteQualityCheck
type Inspection struct {
	Scores            Scores
	Flags             Flags
	IssuesFound       string
	CorrectiveActions string
	Notes             string
}

// Grade applies the grading bands
func Grade(scores Scores, flags Flags) (QualityResult, float64) {
	pct := scores.Percentage()
	switch {
	case flags.Any():
		return ResultFail, pct
	case pct >= PassScore:
		return ResultPass, pct
	case pct >= ConditionalScore:
		return ResultConditional, pct
	default:
		return ResultFail, pct
	}
}

// QualityCheck is the inspection stage record
type QualityCheck struct {
	CheckID             string        `bson:"_id" json:"checkId"`
	CheckNumber         string        `bson:"checkNumber" json:"checkNumber"`
	OrderID             string        `bson:"orderId" json:"orderId"`
	PackageID           string        `bson:"packageId" json:"packageId"`
	CheckType           CheckType     `bson:"checkType" json:"checkType"`
	InspectorName       string        `bson:"inspectorName" json:"inspectorName"`
	Status              QualityStatus `bson:"status" json:"status"`
	OverallResult       QualityResult `bson:"overallResult,omitempty" json:"overallResult,omitempty"`
	ScorePercentage     float64       `bson:"scorePercentage" json:"scorePercentage"`
	Scores              Scores        `bson:"scores" json:"scores"`
	Flags               Flags         `bson:"flags" json:"flags"`
	IssuesFound         string        `bson:"issuesFound,omitempty" json:"issuesFound,omitempty"`
	CorrectiveActions   string        `bson:"correctiveActions,omitempty" json:"correctiveActions,omitempty"`
	Notes               string        `bson:"notes,omitempty" json:"notes,omitempty"`
	RecheckRequired     bool          `bson:"recheckRequired" json:"recheckRequired"`
	RecheckNotes        string        `bson:"recheckNotes,omitempty" json:"recheckNotes,omitempty"`
	RecheckCount        int           `bson:"recheckCount" json:"recheckCount"`
	ApprovedForShipment bool          `bson:"approvedForShipment" json:"approvedForShipment"`
	StartedAt           time.Time     `bson:"startedAt" json:"startedAt"`
	CompletedAt         *time.Time    `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	Version             int           `bson:"version" json:"version"`
	CreatedAt           time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time     `bson:"updatedAt" json:"updatedAt"`

	common.EventRecorder `bson:"-" json:"-"`
}

// NewQualityCheck opens an inspection of a packed package
func NewQualityCheck(pkg *Package, inspector string, checkType CheckType) (*QualityCheck, error) {
	if pkg.Status != PackagePacked {
		return nil, ErrInvalidState
	}
	if checkType == "" {
		checkType = CheckPackaging
	}
	now := time.Now().UTC()
	return &QualityCheck{
		CheckID:       common.NewID(),
		CheckNumber:   common.NewNumber("QC", now),
		OrderID:       pkg.OrderID,
		PackageID:     pkg.PackageID,
		CheckType:     checkType,
		InspectorName: inspector,
		Status:        QualityPending,
		StartedAt:     now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Complete grades the inspection. A check that is not approved requires a recheck.
func (q *QualityCheck) Complete(in Inspection, minimumScore float64) error {
	if q.Status != QualityPending {
		return ErrStageCompleted
	}
	if err := in.Scores.Validate(); err != nil {
		return err
	}

	result, pct := Grade(in.Scores, in.Flags)
	now := time.Now().UTC()

	q.Scores = in.Scores
	q.Flags = in.Flags
	q.IssuesFound = in.IssuesFound
	q.CorrectiveActions = in.CorrectiveActions
	q.Notes = in.Notes
	q.OverallResult = result
	q.ScorePercentage = pct
	q.ApprovedForShipment = result == ResultPass && pct >= minimumScore
	q.RecheckRequired = !q.ApprovedForShipment
	switch result {
	case ResultPass:
		q.Status = QualityPassed
	case ResultConditional:
		q.Status = QualityConditional
	default:
		q.Status = QualityFailed
	}
	q.CompletedAt = &now
	q.UpdatedAt = now

	q.Record(&StageCompletedEvent{
		OrderID:     q.OrderID,
		StageID:     q.CheckID,
		Kind:        StageQuality,
		Result:      string(result),
		CompletedAt: now,
	})
	return nil
}

// RequestRecheck resets a completed, unapproved check for re-inspection
func (q *QualityCheck) RequestRecheck(notes string) error {
	if q.Status == QualityPending {
		return ErrCheckPending
	}
	if q.ApprovedForShipment {
		return ErrCheckApproved
	}
	now := time.Now().UTC()
	q.Status = QualityPending
	q.OverallResult = ""
	q.ScorePercentage = 0
	q.Scores = Scores{}
	q.Flags = Flags{}
	q.RecheckRequired = false
	q.RecheckNotes = notes
	q.RecheckCount++
	q.CompletedAt = nil
	q.StartedAt = now
	q.UpdatedAt = now
	return nil
}

// Clone returns a copy without pending events
func (q *QualityCheck) Clone() *QualityCheck {
	c := *q
	c.EventRecorder = common.EventRecorder{}
	return &c
}
