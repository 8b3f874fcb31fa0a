package tg

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"car_intake/internal/domain"
	"car_intake/internal/form"
	"car_intake/pkg/tgbotapisfm"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Состояния диалога
const (
	stateStart          = "start"
	stateEditRef        = "edit_ref"
	stateBranch         = "branch"
	stateClientType     = "client_type"
	stateCompany        = "company_name"
	stateFirstName      = "first_name"
	stateLastName       = "last_name"
	statePhone          = "phone"
	stateManufacturer   = "car_manufacturer"
	stateModel          = "car_model"
	stateColor          = "car_color"
	stateSize           = "car_size"
	statePlate          = "plate"
	stateServiceKind    = "service_kind"
	stateServiceAttr    = "service_attr"
	stateDeal           = "deal"
	statePrice          = "price"
	stateServiceDate    = "service_date"
	stateGuaranteeType  = "guarantee_type"
	stateGuaranteeStart = "guarantee_start"
	stateMenu           = "menu"
)

// Данные inline-кнопок
const (
	cbBranch        = "branch:"
	cbClientType    = "ctype:"
	cbSize          = "size:"
	cbPlateWidth    = "platew:"
	cbKind          = "kind:"
	cbAttr          = "attr:"
	cbGuarantee     = "guar:"
	cbGuaranteeNone = "guar:none"
	cbToday         = "date:today"
	cbSkip          = "skip"
	cbMenuAdd       = "menu:add"
	cbMenuRemove    = "menu:remove"
	cbMenuSubmit    = "menu:submit"
	cbMenuCancel    = "menu:cancel"
)

const submitTimeout = 15 * time.Second

type TGHandler struct {
	IntakeRepo  domain.IntakeRepo
	drafts      *gocache.Cache
	bot         *tgbotapisfm.Bot
	forceUpdate chan struct{}
	schema      *form.Schema
	branches    []string
	admins      []int64
	logger      *zap.Logger
}

// NewTGHandler admins пустая строка разрешает всем открывать заявки.
func NewTGHandler(bot *tgbotapisfm.Bot, forceUpdate chan struct{}, intakeRepo domain.IntakeRepo, branches []string, admins string, draftTTL time.Duration, logger *zap.Logger) *TGHandler {
	return &TGHandler{
		IntakeRepo:  intakeRepo,
		drafts:      gocache.New(draftTTL, time.Hour),
		bot:         bot,
		forceUpdate: forceUpdate,
		schema:      form.DefaultSchema(),
		branches:    branches,
		admins:      parseAdmins(admins),
		logger:      logger,
	}
}

func (h *TGHandler) SetBot(bot *tgbotapisfm.Bot) {
	h.bot = bot
}

func (h *TGHandler) allowed(userID int64) bool {
	return len(h.admins) == 0 || slices.Contains(h.admins, userID)
}

func draftKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

func (h *TGHandler) draft(userID int64) (*draft, bool) {
	x, ok := h.drafts.Get(draftKey(userID))
	if !ok {
		return nil, false
	}
	d, ok := x.(*draft)
	return d, ok
}

func (h *TGHandler) saveDraft(userID int64, d *draft) {
	h.drafts.Set(draftKey(userID), d, gocache.DefaultExpiration)
}

func (h *TGHandler) dropDraft(userID int64) {
	h.drafts.Delete(draftKey(userID))
}

func send(bot *tgbotapisfm.Bot, update tgbotapi.Update, text string, markup any) error {
	msg := tgbotapi.NewMessage(tgbotapisfm.ChatID(update), text)
	if markup != nil {
		msg.ReplyMarkup = markup
	} else {
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	}
	_, err := bot.SendMessage(msg)
	return err
}

func sendEcho(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft, echo func(d *draft) string) error {
	if echo == nil {
		return nil
	}
	if text := echo(d); text != "" {
		return send(bot, update, text, nil)
	}
	return nil
}

func optionsKeyboard(prefix string, options []form.Option) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(options))
	for _, o := range options {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(o.Label, prefix+o.Value)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *TGHandler) kindOptions() []form.Option {
	out := make([]form.Option, len(h.schema.Kinds))
	for i, k := range h.schema.Kinds {
		out[i] = form.Option{Value: string(k.Kind), Label: k.Label}
	}
	return out
}

// withDraft обработчик, которому нужен черновик. Без черновика оператор возвращается к /start.
func (h *TGHandler) withDraft(fn func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error) tgbotapisfm.Handler {
	return tgbotapisfm.Handler{
		Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			if update.CallbackQuery != nil {
				_ = bot.AnswerCallback(update.CallbackQuery, "")
			}
			userID := tgbotapisfm.UserID(update)
			d, ok := h.draft(userID)
			if !ok {
				bot.ClearUserState(userID)
				return send(bot, update, "انتهت صلاحية الطلب. أرسل /start للبدء من جديد", nil)
			}
			return fn(bot, update, d)
		},
	}
}

// textState состояние со свободным вводом. apply возвращает текст ошибки для оператора или "".
func (h *TGHandler) textState(prompt string, skippable bool, apply func(d *draft, text string) string, next string) tgbotapisfm.State {
	return h.echoTextState(prompt, skippable, apply, nil, next)
}

// echoTextState то же, но после удачного ввода отправляет оператору текст echo, если он не пустой.
func (h *TGHandler) echoTextState(prompt string, skippable bool, apply func(d *draft, text string) string, echo func(d *draft) string, next string) tgbotapisfm.State {
	handleText := func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft, text string) error {
		if problem := apply(d, text); problem != "" {
			return send(bot, update, problem, nil)
		}
		if err := sendEcho(bot, update, d, echo); err != nil {
			return err
		}
		return bot.EnterState(tgbotapisfm.UserID(update), next, update)
	}
	var markup any
	if skippable {
		markup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("تخطي", cbSkip)))
	}
	catchAll := h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
		if update.Message == nil {
			return nil
		}
		return handleText(bot, update, d, update.Message.Text)
	})
	state := tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			return send(bot, update, prompt, markup)
		}},
		CatchAllFunc: &catchAll,
	}
	if skippable {
		state.CallbackHandlers = map[string]tgbotapisfm.Handler{
			cbSkip: h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
				return handleText(bot, update, d, "")
			}),
		}
	}
	return state
}

// choiceState состояние выбора из списка inline-кнопок.
func (h *TGHandler) choiceState(prompt, prefix string, options func() []form.Option, apply func(d *draft, value string) string) tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			return send(bot, update, prompt, optionsKeyboard(prefix, options()))
		}},
		CallbackPrefixHandlers: map[string]tgbotapisfm.Handler{
			prefix: h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
				value := strings.TrimPrefix(update.CallbackQuery.Data, prefix)
				if !slices.ContainsFunc(options(), func(o form.Option) bool { return o.Value == value }) {
					return send(bot, update, "اختيار غير معروف", nil)
				}
				next := apply(d, value)
				return bot.EnterState(tgbotapisfm.UserID(update), next, update)
			}),
		},
		CatchAllFunc: &tgbotapisfm.Handler{Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			if update.Message == nil {
				return nil
			}
			return send(bot, update, "اختر من القائمة", optionsKeyboard(prefix, options()))
		}},
	}
}

func (h *TGHandler) StartState() tgbotapisfm.State {
	return tgbotapisfm.State{
		Global: true,
		MessageHandlers: map[string]tgbotapisfm.Handler{
			"/start":  h.StartHandler(),
			"/new":    h.StartHandler(),
			"/cancel": h.CancelHandler(),
			"/edit":   h.EditHandler(),
		},
	}
}

// StartHandler открывает новый черновик заявки
func (h *TGHandler) StartHandler() tgbotapisfm.Handler {
	return tgbotapisfm.Handler{
		Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			userID := tgbotapisfm.UserID(update)
			if !h.allowed(userID) {
				return send(bot, update, "غير مصرح لك باستخدام هذا البوت", nil)
			}
			d := newDraft()
			h.saveDraft(userID, d)
			h.logger.Info("intake draft opened", zap.Int64("user_id", userID), zap.String("reference", d.Session.Reference))
			return bot.EnterState(userID, stateBranch, update)
		},
	}
}

func (h *TGHandler) CancelHandler() tgbotapisfm.Handler {
	return tgbotapisfm.Handler{
		Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			userID := tgbotapisfm.UserID(update)
			h.dropDraft(userID)
			bot.ClearUserState(userID)
			return send(bot, update, "تم إلغاء الطلب", nil)
		},
	}
}

func (h *TGHandler) EditHandler() tgbotapisfm.Handler {
	return tgbotapisfm.Handler{
		Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			userID := tgbotapisfm.UserID(update)
			if !h.allowed(userID) {
				return send(bot, update, "غير مصرح لك باستخدام هذا البوت", nil)
			}
			return bot.EnterState(userID, stateEditRef, update)
		},
	}
}

// EditRefState загружает сохраненную заявку по номеру для правки
func (h *TGHandler) EditRefState() tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			return send(bot, update, "أرسل رقم الطلب", nil)
		}},
		CatchAllFunc: &tgbotapisfm.Handler{Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			if update.Message == nil {
				return nil
			}
			ref := strings.TrimSpace(update.Message.Text)
			ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
			defer cancel()
			intake, err := h.IntakeRepo.GetByReference(ctx, ref)
			if err != nil {
				h.logger.Warn("intake lookup failed", zap.String("reference", ref), zap.Error(err))
				return send(bot, update, "لم يتم العثور على الطلب", nil)
			}
			payload, err := intake.PayloadMap()
			if err != nil {
				return fmt.Errorf("decode stored intake %s: %w", ref, err)
			}
			s, err := form.LoadSessionFromPayload(intake.Reference, payload)
			if err != nil {
				return fmt.Errorf("load intake %s: %w", ref, err)
			}
			userID := tgbotapisfm.UserID(update)
			h.saveDraft(userID, draftFromSession(s))
			return bot.EnterState(userID, stateMenu, update)
		}},
	}
}

func (h *TGHandler) BranchState() tgbotapisfm.State {
	return h.choiceState("اختر الفرع", cbBranch,
		func() []form.Option {
			out := make([]form.Option, len(h.branches))
			for i, b := range h.branches {
				out[i] = form.Option{Value: b, Label: b}
			}
			return out
		},
		func(d *draft, value string) string {
			d.Session.Client.Branch = value
			return stateClientType
		})
}

func (h *TGHandler) ClientTypeState() tgbotapisfm.State {
	return h.choiceState("نوع العميل", cbClientType,
		func() []form.Option { return h.schema.ClientTypes },
		func(d *draft, value string) string {
			d.Session.Client.ClientType = value
			if value == "company" {
				return stateCompany
			}
			d.Session.Client.CompanyName = ""
			return stateFirstName
		})
}

func nameInput(set func(d *draft, name string)) func(d *draft, text string) string {
	return func(d *draft, text string) string {
		name := strings.TrimSpace(text)
		if len([]rune(name)) > 100 {
			return "الاسم طويل جدا، الحد 100 حرف"
		}
		if !isName(strings.ReplaceAll(name, " ", "")) {
			return "الاسم يجب أن يتكون من حروف فقط"
		}
		set(d, normalizeName(name))
		return ""
	}
}

func maxLenInput(limit int, set func(d *draft, v string)) func(d *draft, text string) string {
	return func(d *draft, text string) string {
		v := strings.TrimSpace(text)
		if len([]rune(v)) > limit {
			return fmt.Sprintf("النص طويل جدا، الحد %d حرف", limit)
		}
		set(d, v)
		return ""
	}
}

func (h *TGHandler) CompanyState() tgbotapisfm.State {
	return h.textState("اسم الشركة", false, func(d *draft, text string) string {
		name := strings.TrimSpace(text)
		if name == "" || len([]rune(name)) > 255 {
			return "أدخل اسم الشركة (حتى 255 حرفا)"
		}
		d.Session.Client.CompanyName = name
		return ""
	}, stateFirstName)
}

func (h *TGHandler) FirstNameState() tgbotapisfm.State {
	return h.textState("الاسم الأول للعميل", false,
		nameInput(func(d *draft, name string) { d.Session.Client.FirstName = name }), stateLastName)
}

func (h *TGHandler) LastNameState() tgbotapisfm.State {
	return h.textState("اسم العائلة", false,
		nameInput(func(d *draft, name string) { d.Session.Client.LastName = name }), statePhone)
}

func (h *TGHandler) PhoneState() tgbotapisfm.State {
	return h.textState("رقم الجوال (05XXXXXXXX)", false, func(d *draft, text string) string {
		phone, ok := normalizeSaudiPhone(text)
		if !ok {
			return "رقم غير صحيح. أدخل رقم جوال سعودي يبدأ بـ 05"
		}
		d.Session.Client.Phone = phone
		return ""
	}, stateManufacturer)
}

func (h *TGHandler) ManufacturerState() tgbotapisfm.State {
	return h.textState("الشركة المصنعة للسيارة", true,
		maxLenInput(100, func(d *draft, v string) { d.Session.Client.Car.Manufacturer = v }), stateModel)
}

func (h *TGHandler) ModelState() tgbotapisfm.State {
	return h.textState("موديل السيارة", true,
		maxLenInput(100, func(d *draft, v string) { d.Session.Client.Car.Model = v }), stateColor)
}

func (h *TGHandler) ColorState() tgbotapisfm.State {
	return h.textState("لون السيارة", true,
		maxLenInput(50, func(d *draft, v string) { d.Session.Client.Car.Color = v }), stateSize)
}

func (h *TGHandler) SizeState() tgbotapisfm.State {
	return h.choiceState("حجم السيارة", cbSize,
		func() []form.Option { return h.schema.CarSizes },
		func(d *draft, value string) string {
			d.Session.Client.Car.Size = value
			return statePlate
		})
}

func plateKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("7 خانات", cbPlateWidth+strconv.Itoa(form.PlateWidthShort)),
		tgbotapi.NewInlineKeyboardButtonData("8 خانات", cbPlateWidth+strconv.Itoa(form.PlateWidthLong)),
	))
}

// PlateState ввод номера по ячейкам. Переход дальше только при заполненном номере.
func (h *TGHandler) PlateState() tgbotapisfm.State {
	prompt := func(d *draft) string {
		return fmt.Sprintf("رقم اللوحة: %s\nأرسل الرقم كاملا، أو \"3 B\" لتعديل خانة، أو \"-3\" لمسحها", renderPlate(d.Session.Plate()))
	}
	catchAll := h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
		if update.Message == nil {
			return nil
		}
		applyPlateText(d.Session, update.Message.Text)
		if d.Session.Plate().Complete() {
			if err := send(bot, update, "رقم اللوحة: "+renderPlate(d.Session.Plate()), nil); err != nil {
				return err
			}
			return bot.EnterState(tgbotapisfm.UserID(update), stateServiceKind, update)
		}
		return send(bot, update, prompt(d), plateKeyboard())
	})
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			d, ok := h.draft(tgbotapisfm.UserID(update))
			if !ok {
				return nil
			}
			return send(bot, update, prompt(d), plateKeyboard())
		}},
		CatchAllFunc: &catchAll,
		CallbackPrefixHandlers: map[string]tgbotapisfm.Handler{
			cbPlateWidth: h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
				width, err := strconv.Atoi(strings.TrimPrefix(update.CallbackQuery.Data, cbPlateWidth))
				if err != nil {
					return nil
				}
				d.Session.SetPlateWidth(width)
				return send(bot, update, prompt(d), plateKeyboard())
			}),
		},
	}
}

func (h *TGHandler) ServiceKindState() tgbotapisfm.State {
	return h.choiceState("نوع الخدمة", cbKind, h.kindOptions, func(d *draft, value string) string {
		if err := d.Session.SetServiceType(d.Current, form.ServiceType(value)); err != nil {
			h.logger.Error("set service type", zap.Error(err))
			return stateMenu
		}
		return stateServiceAttr
	})
}

// ServiceAttrState спрашивает атрибуты услуги по одному, пока резолвер возвращает незаполненные.
// Смена дискриминатора очищает зависимые поля, поэтому следующий вопрос вычисляется заново.
func (h *TGHandler) ServiceAttrState() tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			userID := tgbotapisfm.UserID(update)
			d, ok := h.draft(userID)
			if !ok {
				return nil
			}
			svc, err := d.Session.Service(d.Current)
			if err != nil {
				return bot.EnterState(userID, stateMenu, update)
			}
			spec, pending := d.Session.Resolver().PendingField(svc)
			if !pending {
				return bot.EnterState(userID, stateDeal, update)
			}
			return send(bot, update, spec.Label, optionsKeyboard(cbAttr+string(spec.Key)+":", spec.Options))
		}},
		CallbackPrefixHandlers: map[string]tgbotapisfm.Handler{
			cbAttr: h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
				field, value, ok := parseAttrData(update.CallbackQuery.Data)
				if !ok {
					return nil
				}
				err := d.Session.SetServiceField(d.Current, field, value)
				if errors.Is(err, form.ErrFieldNotApplicable) {
					h.logger.Debug("stale attribute button", zap.String("field", string(field)))
				} else if err != nil {
					return err
				}
				return bot.EnterState(tgbotapisfm.UserID(update), stateServiceAttr, update)
			}),
		},
	}
}

func (h *TGHandler) DealState() tgbotapisfm.State {
	return h.textState("تفاصيل الصفقة", true, func(d *draft, text string) string {
		if len([]rune(text)) > 2000 {
			return "النص طويل جدا، الحد 2000 حرف"
		}
		if err := d.Session.SetDealDetails(d.Current, text); err != nil {
			return "الخدمة غير موجودة"
		}
		return ""
	}, statePrice)
}

// PriceState цена без налога; после ввода показывается разбивка с налогом.
func (h *TGHandler) PriceState() tgbotapisfm.State {
	return h.echoTextState("سعر الخدمة قبل الضريبة", true, func(d *draft, text string) string {
		price, err := parsePrice(text)
		if err != nil {
			return "أدخل السعر كرقم موجب"
		}
		if err := d.Session.SetServicePrice(d.Current, price); err != nil {
			return "أدخل السعر كرقم موجب"
		}
		return ""
	}, func(d *draft) string {
		b, ok := d.Session.PriceBreakdown(d.Current)
		if !ok {
			return ""
		}
		return formatBreakdown(b)
	}, stateServiceDate)
}

func dateKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("اليوم", cbToday),
		tgbotapi.NewInlineKeyboardButtonData("تخطي", cbSkip),
	))
}

// dateState ввод даты текстом или кнопкой "сегодня". echo может быть nil.
func (h *TGHandler) dateState(prompt string, apply func(d *draft, date string) error, echo func(d *draft) string, next string) tgbotapisfm.State {
	commit := func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft, date string) error {
		if err := apply(d, date); err != nil {
			return err
		}
		if err := sendEcho(bot, update, d, echo); err != nil {
			return err
		}
		return bot.EnterState(tgbotapisfm.UserID(update), next, update)
	}
	catchAll := h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
		if update.Message == nil {
			return nil
		}
		date, ok := parseDate(update.Message.Text)
		if !ok {
			return send(bot, update, "تاريخ غير صحيح. استخدم الصيغة 2024-01-31 أو 31/01/2024", dateKeyboard())
		}
		return commit(bot, update, d, date)
	})
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			return send(bot, update, prompt, dateKeyboard())
		}},
		CatchAllFunc: &catchAll,
		CallbackHandlers: map[string]tgbotapisfm.Handler{
			cbToday: h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
				return commit(bot, update, d, today())
			}),
			cbSkip: h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
				return commit(bot, update, d, "")
			}),
		},
	}
}

func (h *TGHandler) ServiceDateState() tgbotapisfm.State {
	return h.dateState("تاريخ الخدمة", func(d *draft, date string) error {
		return d.Session.SetServiceDate(d.Current, date)
	}, nil, stateGuaranteeType)
}

func (h *TGHandler) GuaranteeTypeState() tgbotapisfm.State {
	keyboard := func() tgbotapi.InlineKeyboardMarkup {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(h.schema.Guarantees)+1)
		for i, label := range h.schema.Guarantees {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(label, cbGuarantee+strconv.Itoa(i))))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("بدون ضمان", cbGuaranteeNone)))
		return tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			return send(bot, update, "مدة الضمان", keyboard())
		}},
		CallbackHandlers: map[string]tgbotapisfm.Handler{
			cbGuaranteeNone: h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
				if err := d.Session.SetGuaranteeType(d.Current, ""); err != nil {
					return err
				}
				if err := d.Session.SetGuaranteeStart(d.Current, ""); err != nil {
					return err
				}
				return bot.EnterState(tgbotapisfm.UserID(update), stateMenu, update)
			}),
		},
		CallbackPrefixHandlers: map[string]tgbotapisfm.Handler{
			cbGuarantee: h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
				i, err := strconv.Atoi(strings.TrimPrefix(update.CallbackQuery.Data, cbGuarantee))
				if err != nil || i < 0 || i >= len(h.schema.Guarantees) {
					return send(bot, update, "اختيار غير معروف", keyboard())
				}
				if err := d.Session.SetGuaranteeType(d.Current, h.schema.Guarantees[i]); err != nil {
					return err
				}
				return bot.EnterState(tgbotapisfm.UserID(update), stateGuaranteeStart, update)
			}),
		},
	}
}

// GuaranteeStartState после ввода даты показывает вычисленную дату окончания
func (h *TGHandler) GuaranteeStartState() tgbotapisfm.State {
	return h.dateState("تاريخ بداية الضمان", func(d *draft, date string) error {
		return d.Session.SetGuaranteeStart(d.Current, date)
	}, func(d *draft) string {
		svc, err := d.Session.Service(d.Current)
		if err != nil || svc.Guarantee == nil {
			return ""
		}
		return guaranteeText(svc.Guarantee)
	}, stateMenu)
}

func menuKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("إضافة خدمة", cbMenuAdd),
			tgbotapi.NewInlineKeyboardButtonData("حذف الخدمة الحالية", cbMenuRemove),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("إرسال الطلب", cbMenuSubmit),
			tgbotapi.NewInlineKeyboardButtonData("إلغاء", cbMenuCancel),
		),
	)
}

// MenuState сводка заявки и действия над ней
func (h *TGHandler) MenuState() tgbotapisfm.State {
	return tgbotapisfm.State{
		AtEntranceFunc: &tgbotapisfm.Handler{Handle: func(bot *tgbotapisfm.Bot, update tgbotapi.Update) error {
			d, ok := h.draft(tgbotapisfm.UserID(update))
			if !ok {
				return nil
			}
			return send(bot, update, summary(h.schema, d.Session), menuKeyboard())
		}},
		CallbackHandlers: map[string]tgbotapisfm.Handler{
			cbMenuAdd: h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
				d.Current = d.Session.AddService().ID
				return bot.EnterState(tgbotapisfm.UserID(update), stateServiceKind, update)
			}),
			cbMenuRemove: h.withDraft(func(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
				if err := d.Session.RemoveService(d.Current); errors.Is(err, form.ErrLastService) {
					return send(bot, update, "لا يمكن حذف الخدمة الوحيدة", menuKeyboard())
				} else if err != nil {
					return err
				}
				services := d.Session.Order.Services
				d.Current = services[len(services)-1].ID
				return bot.EnterState(tgbotapisfm.UserID(update), stateMenu, update)
			}),
			cbMenuSubmit: h.withDraft(h.submit),
			cbMenuCancel: h.CancelHandler(),
		},
	}
}

// submit проверяет запись, сохраняет ее и будит выгрузку в таблицу.
// При ошибке черновик остается как был, оператор может исправить и отправить снова.
func (h *TGHandler) submit(bot *tgbotapisfm.Bot, update tgbotapi.Update, d *draft) error {
	if violations := form.Validate(d.Session.Record()); !violations.Empty() {
		return send(bot, update, "يرجى تصحيح الحقول التالية:\n"+formatViolations(violations), menuKeyboard())
	}

	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()
	if err := d.Session.Submit(ctx, h.IntakeRepo); err != nil {
		h.logger.Error("intake submit failed", zap.String("reference", d.Session.Reference), zap.Error(err))
		if errors.Is(err, form.ErrPlateIncomplete) {
			return send(bot, update, "رقم اللوحة غير مكتمل", menuKeyboard())
		}
		return send(bot, update, "تعذر حفظ الطلب، حاول مرة أخرى", menuKeyboard())
	}

	select {
	case h.forceUpdate <- struct{}{}:
	default:
	}

	userID := tgbotapisfm.UserID(update)
	h.logger.Info("intake submitted", zap.Int64("user_id", userID), zap.String("reference", d.Session.Reference))
	h.dropDraft(userID)
	bot.ClearUserState(userID)
	return send(bot, update, "تم حفظ الطلب. رقم الطلب: "+d.Session.Reference, nil)
}

func (h *TGHandler) StatesMap() map[string]tgbotapisfm.State {
	return map[string]tgbotapisfm.State{
		stateStart:          h.StartState(),
		stateEditRef:        h.EditRefState(),
		stateBranch:         h.BranchState(),
		stateClientType:     h.ClientTypeState(),
		stateCompany:        h.CompanyState(),
		stateFirstName:      h.FirstNameState(),
		stateLastName:       h.LastNameState(),
		statePhone:          h.PhoneState(),
		stateManufacturer:   h.ManufacturerState(),
		stateModel:          h.ModelState(),
		stateColor:          h.ColorState(),
		stateSize:           h.SizeState(),
		statePlate:          h.PlateState(),
		stateServiceKind:    h.ServiceKindState(),
		stateServiceAttr:    h.ServiceAttrState(),
		stateDeal:           h.DealState(),
		statePrice:          h.PriceState(),
		stateServiceDate:    h.ServiceDateState(),
		stateGuaranteeType:  h.GuaranteeTypeState(),
		stateGuaranteeStart: h.GuaranteeStartState(),
		stateMenu:           h.MenuState(),
	}
}
