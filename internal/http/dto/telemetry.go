package dto

import "wayfindr.app/relay/internal/model"

type TelemetryAcceptedResponse struct {
	Accepted bool   `json:"accepted"`
	RecordID uint64 `json:"record_id,string"`
	RobotID  string `json:"robot_id"`
}

type TelemetryStatusQuery struct {
	RobotID string `form:"robot_id" binding:"omitempty,max=255"`
}

type TelemetryHistoryQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

type TelemetryListResponse struct {
	Records []model.TelemetryRecord `json:"records"`
	Count   int                     `json:"count"`
}

func ToTelemetryList(records []model.TelemetryRecord) TelemetryListResponse {
	if records == nil {
		records = []model.TelemetryRecord{}
	}
	return TelemetryListResponse{Records: records, Count: len(records)}
}
