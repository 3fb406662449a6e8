package returns

// Status of a return order
type Status string

const (
	StatusRequested  Status = "REQUESTED"
	StatusApproved   Status = "APPROVED"
	StatusRejected   Status = "REJECTED"
	StatusReceived   Status = "RECEIVED"
	StatusInspecting Status = "INSPECTING"
	StatusCompleted  Status = "COMPLETED"
)

// Reason a customer sends goods back
type Reason string

const (
	ReasonDamaged        Reason = "DAMAGED"
	ReasonWrongItem      Reason = "WRONG_ITEM"
	ReasonNotAsDescribed Reason = "NOT_AS_DESCRIBED"
	ReasonSizeIssue      Reason = "SIZE_ISSUE"
	ReasonChangeMind     Reason = "CHANGE_MIND"
	ReasonDefective      Reason = "DEFECTIVE"
	ReasonLateDelivery   Reason = "LATE_DELIVERY"
)

// IsValid checks if the reason is valid
func (r Reason) IsValid() bool {
	switch r {
	case ReasonDamaged, ReasonWrongItem, ReasonNotAsDescribed, ReasonSizeIssue,
		ReasonChangeMind, ReasonDefective, ReasonLateDelivery:
		return true
	default:
		return false
	}
}

// Type is what the customer gets back
type Type string

const (
	TypeRefund      Type = "REFUND"
	TypeExchange    Type = "EXCHANGE"
	TypeStoreCredit Type = "STORE_CREDIT"
)

// IsValid checks if the return type is valid
func (t Type) IsValid() bool {
	return t == TypeRefund || t == TypeExchange || t == TypeStoreCredit
}

// Condition of a returned item
type Condition string

const (
	ConditionNew     Condition = "NEW"
	ConditionLikeNew Condition = "LIKE_NEW"
	ConditionUsed    Condition = "USED"
	ConditionDamaged Condition = "DAMAGED"
)

// IsValid checks if the condition is valid
func (c Condition) IsValid() bool {
	switch c {
	case ConditionNew, ConditionLikeNew, ConditionUsed, ConditionDamaged:
		return true
	default:
		return false
	}
}

// Grade is the overall inspection grade of a return
type Grade string

const (
	GradeExcellent Grade = "EXCELLENT"
	GradeGood      Grade = "GOOD"
	GradeFair      Grade = "FAIR"
	GradePoor      Grade = "POOR"
	GradeDamaged   Grade = "DAMAGED"
)

// IsValid checks if the grade is valid
func (g Grade) IsValid() bool {
	switch g {
	case GradeExcellent, GradeGood, GradeFair, GradePoor, GradeDamaged:
		return true
	default:
		return false
	}
}

// IsRestockable reports whether goods of this grade may go back on the shelf
func (g Grade) IsRestockable() bool {
	return g.IsValid() && g != GradePoor && g != GradeDamaged
}
