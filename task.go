package batchcount

// shardTask is the Lambda event for processing one shard.
type shardTask struct {
	Plan  string `json:"plan"`
	Index int    `json:"index"`
}

// shardTaskResult is returned to the Lambda invoker after a shard completes.
type shardTaskResult struct {
	Item         string `json:"item"`
	Source       string `json:"source"`
	Destination  string `json:"destination"`
	BytesRead    int64  `json:"bytesRead"`
	BytesWritten int64  `json:"bytesWritten"`
	Tokens       int    `json:"tokens"`
}
