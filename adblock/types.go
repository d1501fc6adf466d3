package adblock

// Category 表示拦截结果的类别
type Category string

const (
	CategoryRequest Category = "request" // 网络请求
	CategoryElement Category = "element" // 普通内容节点
	CategoryScript  Category = "script"  // 脚本加载
	CategoryFrame   Category = "frame"   // 内嵌框架
)

// Verdict 分类结果
type Verdict struct {
	Blocked  bool
	Category Category
	Reason   string // 命中的规则，仅用于日志
}
