package models

// AlertConfig 全局报警配置（对应 alert_config 表的 config_name/value 行）
// 个人未配置比例阈值时使用这里的默认值。
type AlertConfig struct {
	AlertPeriod           int `json:"alertPeriod"`           // 布防后抑制的连续违规样本数
	CriticalMarginPercent int `json:"criticalMargin"`        // 超出绝对阈值该百分比升为一级报警
	HeartBeatRatioUpper   int `json:"heartBeatRatioUpper"`   // 心率基线上限百分比
	HeartBeatRatioLower   int `json:"heartBeatRatioLower"`   // 心率基线下限百分比
	BreathRatioUpper      int `json:"breathRatioUpper"`      // 呼吸基线上限百分比
	BreathRatioLower      int `json:"breathRatioLower"`      // 呼吸基线下限百分比
}
