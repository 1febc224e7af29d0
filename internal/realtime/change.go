package realtime

import "time"

// Change 一次已提交的文档变更通知
//
// 只携带定位信息，订阅方收到后自行读取文档的当前状态。
// Path 为文档完整路径，子集合文档的 ID 只在父文档内唯一，单文档主题以它为准。
type Change struct {
	Collection string    `json:"collection"`
	DocID      string    `json:"doc_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	Path       string    `json:"path,omitempty"`
	Op         string    `json:"op"`
	At         time.Time `json:"at"`
}

// DocTopic 单文档主题，形如 users/u1
func DocTopic(collection, docID string) string {
	return collection + "/" + docID
}

// CollectionTopic 集合级主题，用于查询型订阅
func CollectionTopic(collection string) string {
	return collection
}

// ParentTopic 按父文档聚合的主题，形如 attendance@{classID}
func ParentTopic(collection, parentID string) string {
	return collection + "@" + parentID
}

// Topics 一条变更需要投递的全部主题
func (c Change) Topics() []string {
	doc := c.Path
	if doc == "" {
		doc = DocTopic(c.Collection, c.DocID)
	}
	topics := []string{doc, CollectionTopic(c.Collection)}
	if c.ParentID != "" {
		topics = append(topics, ParentTopic(c.Collection, c.ParentID))
	}
	return topics
}
