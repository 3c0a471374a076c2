package post

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/autosmm/internal/model"
)

const (
	// dateTimeLayout はhr-HRロケールの日時表示形式。
	dateTimeLayout = "02.01.2006. 15:04"
	// dateLayout はhr-HRロケールの日付表示形式。
	dateLayout = "02.01.2006."

	maxTitleLength = 200
	// maxContentLength はInstagramのキャプション上限に合わせる。
	maxContentLength = 2200
)

// Viewer は操作中のユーザー情報。
// 認証・プロフィール側から明示的に渡され、サービス内で変更されない。
type Viewer struct {
	UserID      string
	DisplayName string
	Plan        model.Plan
}

// ContentSanitizer は投稿本文のサニタイズインターフェース。
type ContentSanitizer interface {
	SanitizeText(raw string) string
}

// URLValidator は画像URLの安全性検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// MetricsRecorder は投稿作成に関するメトリクス記録のインターフェース。
type MetricsRecorder interface {
	RecordPostCreated(plan string)
	RecordCreateDenied(reason string)
}

// PostView は画面表示用に整形した投稿。
type PostView struct {
	ID             string
	Title          string
	Content        string
	ScheduledFor   time.Time
	ScheduledLabel string
	TimeLabel      string
	Platforms      []Label
	Status         Label
	ImageURL       *string
}

// DashboardView はダッシュボード画面のビューモデル。
type DashboardView struct {
	Greeting      string
	Counts        model.StatusCounts
	Posts         []PostView
	CanCreatePost bool
	UpgradeURL    string // 作成不可の場合のみ設定
}

// CalendarView はカレンダー画面のビューモデル。
type CalendarView struct {
	Date            time.Time
	Title           string
	Posts           []PostView
	HighlightedDays []int
	CanCreatePost   bool
	UpgradeURL      string
}

// CreateInput は投稿作成フォームの入力。
type CreateInput struct {
	Title        string
	Content      string
	ScheduledFor time.Time
	Platforms    []model.Platform
	ImageURL     *string
}

// Service は投稿ビューモデルのサービス層。
type Service struct {
	source    Source
	writer    Writer
	sanitizer ContentSanitizer
	validator URLValidator
	metrics   MetricsRecorder
	location  *time.Location
}

// NewService はServiceの新しいインスタンスを生成する。
// locationはカレンダーの暦日判定に使用する。nilの場合はUTC。
// metricsはnilを許容する。
func NewService(
	source Source,
	writer Writer,
	sanitizer ContentSanitizer,
	validator URLValidator,
	metrics MetricsRecorder,
	location *time.Location,
) *Service {
	if location == nil {
		location = time.UTC
	}
	return &Service{
		source:    source,
		writer:    writer,
		sanitizer: sanitizer,
		validator: validator,
		metrics:   metrics,
		location:  location,
	}
}

// Location はカレンダー判定に使うロケーションを返す。
func (s *Service) Location() *time.Location {
	return s.location
}

// registry はviewerの投稿を読み込み、1リクエスト分のRegistryを作る。
func (s *Service) registry(ctx context.Context, viewer Viewer) (*Registry, error) {
	posts, err := s.source.FindAll(ctx, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return NewRegistry(posts), nil
}

// Dashboard はダッシュボードのビューモデルを構築する。
func (s *Service) Dashboard(ctx context.Context, viewer Viewer) (*DashboardView, error) {
	reg, err := s.registry(ctx, viewer)
	if err != nil {
		return nil, err
	}

	view := &DashboardView{
		Greeting:      fmt.Sprintf("Dobrodošli natrag, %s!", viewer.DisplayName),
		Counts:        reg.Counts(),
		Posts:         s.toViews(reg.Posts()),
		CanCreatePost: reg.CanCreate(viewer.Plan),
	}
	if !view.CanCreatePost {
		view.UpgradeURL = model.UpgradePath
	}
	return view, nil
}

// Calendar は指定日のカレンダービューモデルを構築する。
// dateの時刻部分は無視し、Serviceのロケーションでの暦日として扱う。
func (s *Service) Calendar(ctx context.Context, viewer Viewer, date time.Time) (*CalendarView, error) {
	reg, err := s.registry(ctx, viewer)
	if err != nil {
		return nil, err
	}

	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, s.location)

	view := &CalendarView{
		Date:            day,
		Title:           fmt.Sprintf("Objave za %s", day.Format(dateLayout)),
		Posts:           s.toViews(reg.OnDate(day)),
		HighlightedDays: reg.DaysIn(y, m, s.location),
		CanCreatePost:   reg.CanCreate(viewer.Plan),
	}
	if !view.CanCreatePost {
		view.UpgradeURL = model.UpgradePath
	}
	return view, nil
}

// List はユーザーの投稿一覧を表示用に整形して返す。
func (s *Service) List(ctx context.Context, viewer Viewer) ([]PostView, error) {
	posts, err := s.source.FindAll(ctx, viewer.UserID)
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました: %w", err)
	}
	return s.toViews(posts), nil
}

// Get は投稿詳細を返す。
func (s *Service) Get(ctx context.Context, viewer Viewer, id string) (*PostView, error) {
	p, err := s.source.FindByID(ctx, viewer.UserID, id)
	if err != nil {
		return nil, fmt.Errorf("投稿の取得に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewPostNotFoundError(id)
	}
	v := s.toView(p)
	return &v, nil
}

// Create は新しい投稿をscheduled状態で作成する。
// フロー: 入力検証 → プラン上限チェック → プラットフォーム許可チェック → 画像URL検証 → 保存
//
// 上限チェックは読み取り後に保存するため非アトミックであり、
// 同時リクエストでは無料プランでも2件以上作成され得る。
func (s *Service) Create(ctx context.Context, viewer Viewer, in CreateInput) (*PostView, error) {
	platforms, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	reg, err := s.registry(ctx, viewer)
	if err != nil {
		return nil, err
	}
	if !reg.CanCreate(viewer.Plan) {
		s.recordDenied("plan_limit")
		return nil, model.NewPlanLimitError()
	}

	for _, pl := range platforms {
		if !viewer.Plan.AllowsPlatform(pl) {
			s.recordDenied("platform_not_allowed")
			return nil, model.NewPlatformNotAllowedError(viewer.Plan, pl)
		}
	}

	var imageURL *string
	if in.ImageURL != nil && strings.TrimSpace(*in.ImageURL) != "" {
		u := strings.TrimSpace(*in.ImageURL)
		if err := s.validator.ValidateURL(u); err != nil {
			return nil, model.NewInvalidURLError(err.Error())
		}
		imageURL = &u
	}

	now := time.Now()
	p := &model.Post{
		ID:           uuid.New().String(),
		UserID:       viewer.UserID,
		Title:        strings.TrimSpace(in.Title),
		Content:      s.sanitizer.SanitizeText(in.Content),
		ScheduledFor: in.ScheduledFor,
		Platforms:    platforms,
		Status:       model.PostStatusScheduled,
		ImageURL:     imageURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.writer.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("投稿の保存に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordPostCreated(string(viewer.Plan))
	}
	slog.Info("post created",
		slog.String("post_id", p.ID),
		slog.String("user_id", viewer.UserID),
		slog.String("plan", string(viewer.Plan)),
		slog.Int("platform_count", len(platforms)),
	)

	v := s.toView(p)
	return &v, nil
}

func (s *Service) recordDenied(reason string) {
	if s.metrics != nil {
		s.metrics.RecordCreateDenied(reason)
	}
}

// validateInput は作成入力を検証し、重複を除いたプラットフォーム一覧を返す。
func validateInput(in CreateInput) ([]model.Platform, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, model.NewInvalidPostError("naslov je obavezan")
	}
	if len([]rune(title)) > maxTitleLength {
		return nil, model.NewInvalidPostError(fmt.Sprintf("naslov je dulji od %d znakova", maxTitleLength))
	}
	if strings.TrimSpace(in.Content) == "" {
		return nil, model.NewInvalidPostError("sadržaj je obavezan")
	}
	if len([]rune(in.Content)) > maxContentLength {
		return nil, model.NewInvalidPostError(fmt.Sprintf("sadržaj je dulji od %d znakova", maxContentLength))
	}
	if in.ScheduledFor.IsZero() {
		return nil, model.NewInvalidPostError("datum objave je obavezan")
	}
	if len(in.Platforms) == 0 {
		return nil, model.NewInvalidPostError("odaberite barem jednu platformu")
	}

	seen := make(map[model.Platform]bool, len(in.Platforms))
	platforms := make([]model.Platform, 0, len(in.Platforms))
	for _, pl := range in.Platforms {
		if !pl.IsKnown() {
			return nil, model.NewInvalidPostError(fmt.Sprintf("nepoznata platforma: %s", pl))
		}
		if seen[pl] {
			continue
		}
		seen[pl] = true
		platforms = append(platforms, pl)
	}
	return platforms, nil
}

func (s *Service) toViews(posts []model.Post) []PostView {
	views := make([]PostView, len(posts))
	for i := range posts {
		views[i] = s.toView(&posts[i])
	}
	return views
}

func (s *Service) toView(p *model.Post) PostView {
	v := PostView{
		ID:           p.ID,
		Title:        p.Title,
		Content:      p.Content,
		ScheduledFor: p.ScheduledFor,
		Platforms:    make([]Label, len(p.Platforms)),
		Status:       StatusLabel(p.Status),
		ImageURL:     p.ImageURL,
	}
	if !p.ScheduledFor.IsZero() {
		local := p.ScheduledFor.In(s.location)
		v.ScheduledLabel = local.Format(dateTimeLayout)
		v.TimeLabel = local.Format("15:04")
	}
	for i, pl := range p.Platforms {
		v.Platforms[i] = PlatformLabel(pl)
	}
	return v
}
