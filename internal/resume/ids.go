package resume

import "github.com/google/uuid"

// IDGenerator 为新建的列表元素生成标识。
type IDGenerator interface {
	NewID() ItemID
}

// IDGeneratorFunc 将函数适配为 IDGenerator。
type IDGeneratorFunc func() ItemID

func (f IDGeneratorFunc) NewID() ItemID { return f() }

// UUIDGenerator 使用随机 UUID，是默认实现。
var UUIDGenerator IDGenerator = IDGeneratorFunc(func() ItemID {
	return ItemID(uuid.NewString())
})

const maxIDAttempts = 8

// freshID 生成在 taken 中不存在的标识。生成器连续冲突时退回 UUID。
func freshID(gen IDGenerator, taken func(ItemID) bool) ItemID {
	if gen == nil {
		gen = UUIDGenerator
	}
	for i := 0; i < maxIDAttempts; i++ {
		id := gen.NewID()
		if id != "" && !taken(id) {
			return id
		}
	}
	for {
		id := UUIDGenerator.NewID()
		if !taken(id) {
			return id
		}
	}
}
