package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/wms-platform/fulfillment/services/fulfillment-service/internal/domain/common"
)

// PackageStatus represents the status of a package
type PackageStatus string

const (
	PackagePacking PackageStatus = "PACKING"
	PackagePacked  PackageStatus = "PACKED"
)

// PackageType is the kind of container used
type PackageType string

const (
	PackageBox      PackageType = "BOX"
	PackageEnvelope PackageType = "ENVELOPE"
	PackagePallet   PackageType = "PALLET"
	PackageCarton   PackageType = "CARTON"
)

// IsValid checks if the package type is valid
func (t PackageType) IsValid() bool {
	switch t {
	case PackageBox, PackageEnvelope, PackagePallet, PackageCarton:
		return true
	default:
		return false
	}
}

// PackageSize is the size class of a package
type PackageSize string

const (
	SizeSmall      PackageSize = "SMALL"
	SizeMedium     PackageSize = "MEDIUM"
	SizeLarge      PackageSize = "LARGE"
	SizeExtraLarge PackageSize = "EXTRA_LARGE"
)

// IsValid checks if the package size is valid
func (s PackageSize) IsValid() bool {
	switch s {
	case SizeSmall, SizeMedium, SizeLarge, SizeExtraLarge:
		return true
	default:
		return false
	}
}

// Dimensions in centimetres
type Dimensions struct {
	LengthCm float64 `bson:"lengthCm" json:"lengthCm"`
	WidthCm  float64 `bson:"widthCm" json:"widthCm"`
	HeightCm float64 `bson:"heightCm" json:"heightCm"`
}

// String formats dimensions as LxWxH
func (d Dimensions) String() string {
	return fmt.Sprintf("%gx%gx%g", d.LengthCm, d.WidthCm, d.HeightCm)
}

// PackageFlags are handling requirements of a package
type PackageFlags struct {
	IsFragile         bool `bson:"isFragile" json:"isFragile"`
	RequiresSignature bool `bson:"requiresSignature" json:"requiresSignature"`
	IsHazardous       bool `bson:"isHazardous" json:"isHazardous"`
	IsInsured         bool `bson:"isInsured" json:"isInsured"`
}

// PackageItem is a picked product placed in the package
type PackageItem struct {
	ProductID string `bson:"productId" json:"productId"`
	SKU       string `bson:"sku" json:"sku"`
	Quantity  int    `bson:"quantity" json:"quantity"`
}

// Package is the packing stage record
type Package struct {
	PackageID     string        `bson:"_id" json:"packageId"`
	PackageNumber string        `bson:"packageNumber" json:"packageNumber"`
	OrderID       string        `bson:"orderId" json:"orderId"`
	PickListID    string        `bson:"pickListId" json:"pickListId"`
	PackageType   PackageType   `bson:"packageType" json:"packageType"`
	PackageSize   PackageSize   `bson:"packageSize" json:"packageSize"`
	Carrier       string        `bson:"carrier,omitempty" json:"carrier,omitempty"`
	ServiceType   string        `bson:"serviceType,omitempty" json:"serviceType,omitempty"`
	Flags         PackageFlags  `bson:"flags" json:"flags"`
	Items         []PackageItem `bson:"items" json:"items"`
	Status        PackageStatus `bson:"status" json:"status"`
	PackedBy      string        `bson:"packedBy,omitempty" json:"packedBy,omitempty"`
	WeightKg      float64       `bson:"weightKg" json:"weightKg"`
	Dimensions    Dimensions    `bson:"dimensions" json:"dimensions"`
	PackedAt      *time.Time    `bson:"packedAt,omitempty" json:"packedAt,omitempty"`
	Version       int           `bson:"version" json:"version"`
	CreatedAt     time.Time     `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time     `bson:"updatedAt" json:"updatedAt"`

	common.EventRecorder `bson:"-" json:"-"`
}

// PackageParams describes how an order is to be packed
type PackageParams struct {
	PackageType PackageType
	PackageSize PackageSize
	Carrier     string
	ServiceType string
	Flags       PackageFlags
}

// NewPackage starts packing the items of a completed pick list
func NewPackage(pickList *PickList, params PackageParams) (*Package, error) {
	if pickList.Status != PickListCompleted {
		return nil, fmt.Errorf("%w: pick list is %s", ErrInvalidState, pickList.Status)
	}
	if params.PackageType == "" {
		params.PackageType = PackageBox
	}
	if params.PackageSize == "" {
		params.PackageSize = SizeMedium
	}
	if !params.PackageType.IsValid() {
		return nil, fmt.Errorf("%w: unknown package type %q", ErrValidation, params.PackageType)
	}
	if !params.PackageSize.IsValid() {
		return nil, fmt.Errorf("%w: unknown package size %q", ErrValidation, params.PackageSize)
	}

	items := make([]PackageItem, 0, len(pickList.Items))
	for _, it := range pickList.Items {
		items = append(items, PackageItem{ProductID: it.ProductID, SKU: it.SKU, Quantity: it.PickedQuantity})
	}

	now := time.Now().UTC()
	return &Package{
		PackageID:     common.NewID(),
		PackageNumber: common.NewNumber("PKG", now),
		OrderID:       pickList.OrderID,
		PickListID:    pickList.PickListID,
		PackageType:   params.PackageType,
		PackageSize:   params.PackageSize,
		Carrier:       strings.ToUpper(params.Carrier),
		ServiceType:   strings.ToUpper(params.ServiceType),
		Flags:         params.Flags,
		Items:         items,
		Status:        PackagePacking,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// Complete seals the package
func (p *Package) Complete(packedBy string, weightKg float64, dims Dimensions) error {
	if p.Status == PackagePacked {
		return ErrStageCompleted
	}
	if weightKg <= 0 {
		return ErrInvalidWeight
	}
	if dims.LengthCm < 0 || dims.WidthCm < 0 || dims.HeightCm < 0 {
		return fmt.Errorf("%w: dimensions must not be negative", ErrValidation)
	}

	now := time.Now().UTC()
	p.Status = PackagePacked
	p.PackedBy = packedBy
	p.WeightKg = weightKg
	p.Dimensions = dims
	p.PackedAt = &now
	p.UpdatedAt = now
	p.Record(&StageCompletedEvent{OrderID: p.OrderID, StageID: p.PackageID, Kind: StagePack, CompletedAt: now})
	return nil
}

// Clone returns a deep copy without pending events
func (p *Package) Clone() *Package {
	c := *p
	c.EventRecorder = common.EventRecorder{}
	c.Items = append([]PackageItem(nil), p.Items...)
	return &c
}
