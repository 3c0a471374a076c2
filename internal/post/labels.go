package post

import "github.com/hitoshi/autosmm/internal/model"

// Label は列挙値の表示用メタデータ。
type Label struct {
	Value string // 元の列挙値。未知の値は "unknown"
	Label string // 画面表示名
	Icon  string // アイコン名
	Color string // バッジの色。プラットフォームでは空
}

const unknownValue = "unknown"

var platformLabels = map[model.Platform]Label{
	model.PlatformInstagram: {Value: "instagram", Label: "Instagram", Icon: "instagram"},
	model.PlatformFacebook:  {Value: "facebook", Label: "Facebook", Icon: "facebook"},
	model.PlatformTikTok:    {Value: "tiktok", Label: "TikTok", Icon: "tiktok"},
}

var statusLabels = map[model.PostStatus]Label{
	model.PostStatusScheduled: {Value: "scheduled", Label: "Zakazano", Icon: "clock", Color: "blue"},
	model.PostStatusPublished: {Value: "published", Label: "Objavljeno", Icon: "check-circle", Color: "green"},
	model.PostStatusFailed:    {Value: "failed", Label: "Greška", Icon: "x-circle", Color: "red"},
}

// UnknownPlatformLabel は未知のプラットフォームに使うフォールバック。
var UnknownPlatformLabel = Label{Value: unknownValue, Label: "Nepoznato", Icon: "generic"}

// UnknownStatusLabel は未知のステータスに使うフォールバック。
var UnknownStatusLabel = Label{Value: unknownValue, Label: "Nepoznato", Icon: "help-circle", Color: "gray"}

// PlatformLabel はプラットフォームの表示用メタデータを返す。
// 列挙外の値にはUnknownPlatformLabelを返す。
func PlatformLabel(p model.Platform) Label {
	if l, ok := platformLabels[p]; ok {
		return l
	}
	return UnknownPlatformLabel
}

// StatusLabel はステータスの表示用メタデータを返す。
// 列挙外の値にはUnknownStatusLabelを返す。
func StatusLabel(s model.PostStatus) Label {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return UnknownStatusLabel
}
