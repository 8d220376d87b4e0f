package furydto

// ResourceBundle is the wire form of a wood/meat/gems amount. Negative amounts in
// transfer requests are treated as zero.
type ResourceBundle struct {
	Wood int64 `json:"wood"`
	Meat int64 `json:"meat"`
	Gems int64 `json:"gems"`
}

type ShieldRequest struct {
	Hours int `json:"hours" validate:"oneof=4 24"`
}

type CreateAllianceRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=20"`
	Tag         string `json:"tag" validate:"required,min=2,max=5,alphanum"`
	Description string `json:"description" validate:"max=500"`
	IsPublic    *bool  `json:"isPublic"`
}

type TransferLeadershipRequest struct {
	NewLeaderID string `json:"newLeaderId" validate:"required"`
}

type OfficerRequest struct {
	Promote bool `json:"promote"`
}

type GiftRequest struct {
	ToUserID  string         `json:"toUserId" validate:"required"`
	Resources ResourceBundle `json:"resources"`
	Message   string         `json:"message" validate:"max=100"`
}

type DonateRequest struct {
	Resources ResourceBundle `json:"resources"`
}

// ProgressionPayload is pushed by the save pipeline; zero fields take progression defaults.
type ProgressionPayload struct {
	Level           int            `json:"level" validate:"gte=0,lte=1000"`
	MaxHealth       float64        `json:"maxHealth" validate:"gte=0"`
	AxeDamage       float64        `json:"axeDamage" validate:"gte=0"`
	AttackSpeed     float64        `json:"attackSpeed" validate:"gte=0"`
	CritChance      float64        `json:"critChance" validate:"gte=0"`
	CritDamage      float64        `json:"critDamage" validate:"gte=0"`
	DamageReduction float64        `json:"damageReduction" validate:"gte=0"`
	HighestWave     int            `json:"highestWave" validate:"gte=0"`
	DefenseLevel    int            `json:"defenseLevel" validate:"gte=0"`
	WallLevel       int            `json:"wallLevel" validate:"gte=0"`
	Resources       ResourceBundle `json:"resources"`
	MaxWood         int64          `json:"maxWood" validate:"gte=0"`
	MaxMeat         int64          `json:"maxMeat" validate:"gte=0"`
}

type AccountUpsertRequest struct {
	Name        string              `json:"name" validate:"required,min=3,max=20"`
	Guest       bool                `json:"guest"`
	Progression *ProgressionPayload `json:"progression"`
}
