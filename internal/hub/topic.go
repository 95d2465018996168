package hub

import (
	"errors"
	"fmt"
	"strings"
)

// TopicAllRooms 全房间通配主题
const TopicAllRooms = "/rooms/all"

const roomTopicPrefix = "/rooms/"

// ErrInvalidTopic 非法主题（订阅失败的唯一原因）
var ErrInvalidTopic = errors.New("invalid topic")

// RoomTopic 构建单个房间的主题
func RoomTopic(roomID int64) string {
	return fmt.Sprintf("%s%d", roomTopicPrefix, roomID)
}

// ValidateTopic 校验主题格式："/rooms/all" 或 "/rooms/{数字id}"
func ValidateTopic(topic string) error {
	if topic == TopicAllRooms {
		return nil
	}
	suffix, ok := strings.CutPrefix(topic, roomTopicPrefix)
	if !ok || suffix == "" {
		return ErrInvalidTopic
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return ErrInvalidTopic
		}
	}
	return nil
}
