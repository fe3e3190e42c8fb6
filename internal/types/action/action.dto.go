package action

type EnqueueBlocksRequest struct {
	SourceUID string   `json:"sourceUid" validate:"required"`
	SinkUIDs  []string `json:"sinkUids" validate:"required"`
}

type EnqueueBlocksResponse struct {
	SourceUID string `json:"sourceUid"`
	Accepted  int    `json:"accepted"`
}
