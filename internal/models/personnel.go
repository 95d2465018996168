package models

// Personnel 被监护人员（对应 personnel 表）
type Personnel struct {
	ID             int64  `json:"id" db:"id"`
	Name           string `json:"name" db:"name"`
	IDNumber       string `json:"id_number" db:"id_number"`
	Gender         string `json:"gender,omitempty" db:"gender"`
	Age            int    `json:"age,omitempty" db:"age"`
	Occupation     string `json:"occupation,omitempty" db:"occupation"`
	MedicalHistory string `json:"medical_history,omitempty" db:"medical_history"` // 病史编码 d0..d7
	Remark         string `json:"remark,omitempty" db:"remark"`

	// 绝对阈值（为空表示不检查该项）
	HeartRateUpper *int `json:"heart_rate_upper,omitempty" db:"heart_rate_upper"`
	HeartRateLower *int `json:"heart_rate_lower,omitempty" db:"heart_rate_lower"`
	BreathUpper    *int `json:"breath_upper,omitempty" db:"breath_upper"`
	BreathLower    *int `json:"breath_lower,omitempty" db:"breath_lower"`

	// 个人基线（比例阈值的基准）
	HeartRateBase *int `json:"heart_rate_base,omitempty" db:"heart_rate_base"`
	BreathBase    *int `json:"breath_base,omitempty" db:"breath_base"`

	// 比例阈值（基线的百分比，为空时使用 alert_config 的全局默认值）
	HeartRatioUpper *int `json:"heart_ratio_upper,omitempty" db:"heart_ratio_upper"`
	HeartRatioLower *int `json:"heart_ratio_lower,omitempty" db:"heart_ratio_lower"`
	BreathRatioUpper *int `json:"breath_ratio_upper,omitempty" db:"breath_ratio_upper"`
	BreathRatioLower *int `json:"breath_ratio_lower,omitempty" db:"breath_ratio_lower"`

	// 作息时间段（命中时暂停监护和报警）
	Schedules []Schedule `json:"schedules,omitempty"`
}
