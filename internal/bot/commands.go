package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/shrimpsizemoose/overdue/internal/models"
)

const (
	studentHelp = `Доступные команды:
/token - Получить токен для доступа к API
/help - Показать это сообщение`

	adminHelp = `Доступные команды:
/token - Получить токен для доступа к API
/policy set <assessment> due <dd/mm/yyyy> [HH:MM] daily <N> max <N> penalty on|off prevent on|off - Настроить дедлайн и штрафы
/policy show [assessment] - Показать настройки
/policy list - Все тесты с настройками
/late [assessment] - Список опоздавших
/penalty <submission> - Штраф за конкретную сдачу
/regrade [assessment] - Пересчитать штрафы по текущим настройкам
/bind <assessment> [comment] - Привязать тест к этому чату
/link <telegram> <user> - Связать telegram аккаунт с пользователем
/holidays - Праздничные дни календаря
/help - Показать это сообщение

Примеры:
/policy set quiz1 due 28/11/2022 23:59 daily 5 max 25
/policy show quiz1
/late quiz1`

	dateLayout     = "02/01/2006"
	dateTimeLayout = "02/01/2006 15:04"
)

type commandHandler func(*tgbotapi.Message) error

func (b *Bot) routeStudentCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"start": b.handleStart,
		"token": b.handleToken,
		"help":  b.handleHelp,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) routeAdminCommands(cmd string) (commandHandler, bool) {
	commands := map[string]commandHandler{
		"policy":   b.handlePolicy,
		"late":     b.handleLate,
		"penalty":  b.handlePenalty,
		"regrade":  b.handleRegrade,
		"bind":     b.handleBind,
		"link":     b.handleLink,
		"holidays": b.handleHolidays,
	}
	handler, found := commands[cmd]
	return handler, found
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.sendHelp(msg.Chat.ID)
		return
	}

	cmd := msg.Command()

	if handler, ok := b.routeStudentCommands(cmd); ok {
		if err := handler(msg); err != nil {
			logger.Error.Printf("Command error: %v", err)
			b.sendMessage(msg.Chat.ID, fmt.Sprintf("Error: %v", err))
		}
		return
	}

	if b.admins[msg.From.ID] {
		if handler, ok := b.routeAdminCommands(cmd); ok {
			if err := handler(msg); err != nil {
				logger.Error.Printf("Command error: %v", err)
				b.sendMessage(msg.Chat.ID, fmt.Sprintf("Error: %v", err))
			}
		}
		return
	}

	b.sendHelp(msg.Chat.ID)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	var text string
	if b.admins[msg.From.ID] {
		text = adminHelp
	} else {
		text = studentHelp
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) sendHelp(chatID int64) error {
	return b.sendMessage(chatID, "Используйте команды для взаимодействия с ботом. Отправьте /help для списка команд.")
}

func (b *Bot) handleStart(msg *tgbotapi.Message) error {
	text := "Привет! Я слежу за дедлайнами и штрафами за опоздание.\n\n"
	if b.admins[msg.From.ID] {
		text += "Ты администратор. Используй /help для списка команд."
	} else {
		text += "Используй /token чтобы получить токен."
	}

	return b.sendMessage(msg.Chat.ID, text)
}

func (b *Bot) handleToken(msg *tgbotapi.Message) error {
	if b.tokens == nil {
		return fmt.Errorf("выдача токенов не настроена")
	}

	ctx := context.Background()
	user, err := b.tokens.FetchUserIDByTelegram(ctx, msg.From.UserName)
	if err != nil {
		return fmt.Errorf("не нашёл тебя в списке, попроси администратора выполнить /link")
	}

	info, created, err := b.tokens.FetchOrCreateUserToken(ctx, user)
	if err != nil {
		return fmt.Errorf("не удалось получить токен: %v", err)
	}

	text := fmt.Sprintf("Твой токен: %s\nЗапросов: %d", info.Token, info.RequestCount)
	if created {
		text = "Новый токен создан.\n" + text
	}
	return b.sendMessage(msg.Chat.ID, text)
}

// resolveAssessment takes the assessment from args or falls back to the one
// bound to the chat.
func (b *Bot) resolveAssessment(chatID int64, args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	if b.tokens == nil {
		return "", fmt.Errorf("укажи тест")
	}
	binding, err := b.tokens.FetchChatBinding(context.Background(), chatID)
	if err != nil {
		return "", fmt.Errorf("укажи тест или привяжи его к чату через /bind")
	}
	return binding.Assessment, nil
}

func (b *Bot) handlePolicy(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return b.sendMessage(msg.Chat.ID, "Использование:\n"+
			"/policy set <assessment> due <dd/mm/yyyy> [HH:MM] daily <N> max <N> penalty on|off prevent on|off\n"+
			"/policy show [assessment]\n"+
			"/policy list")
	}

	switch args[0] {
	case "set":
		if len(args) < 2 {
			return fmt.Errorf("укажи тест: /policy set quiz1 due 28/11/2022")
		}
		return b.handlePolicySet(msg.Chat.ID, args[1], args[2:])
	case "show":
		assessment, err := b.resolveAssessment(msg.Chat.ID, args[1:])
		if err != nil {
			return err
		}
		return b.handlePolicyShow(msg.Chat.ID, assessment)
	case "list":
		return b.handlePolicyList(msg.Chat.ID)
	default:
		return fmt.Errorf("неизвестная подкоманда: %s", args[0])
	}
}

// applyPolicyArgs reads "key value" pairs on top of policy. Dates are d/m/Y
// in loc, a date without a time means 23:59 of that day.
func applyPolicyArgs(policy *models.AssessmentPolicy, args []string, loc *time.Location) error {
	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			return fmt.Errorf("пропущено значение для %s", args[i])
		}

		key, value := args[i], args[i+1]
		switch key {
		case "due", "opens", "closes":
			ts, consumed, err := parseDate(args[i+1:], loc)
			if err != nil {
				return fmt.Errorf("некорректная дата (используйте dd/mm/yyyy [HH:MM]): %v", err)
			}
			i += consumed - 1
			switch key {
			case "due":
				policy.DueAt = ts
			case "opens":
				policy.OpensAt = ts
			case "closes":
				policy.ClosesAt = ts
			}
		case "daily", "max":
			n, err := strconv.Atoi(value)
			if err != nil {
				return fmt.Errorf("некорректный процент: %v", err)
			}
			if key == "daily" {
				policy.DailyPercentage = n
			} else {
				policy.MaxPercentage = n
			}
		case "penalty", "prevent":
			on, err := parseSwitch(value)
			if err != nil {
				return err
			}
			if key == "penalty" {
				policy.PenaltyEnabled = on
			} else {
				policy.PreventResubmission = on
			}
		default:
			return fmt.Errorf("неизвестный параметр: %s", key)
		}
	}
	return nil
}

// parseDate parses "dd/mm/yyyy" optionally followed by "HH:MM" and reports
// how many args it used. "off" clears the date.
func parseDate(args []string, loc *time.Location) (int64, int, error) {
	if args[0] == "off" {
		return 0, 1, nil
	}
	if len(args) > 1 && strings.Contains(args[1], ":") {
		t, err := time.ParseInLocation(dateTimeLayout, args[0]+" "+args[1], loc)
		if err != nil {
			return 0, 0, err
		}
		return t.Unix(), 2, nil
	}
	t, err := time.ParseInLocation(dateLayout, args[0], loc)
	if err != nil {
		return 0, 0, err
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 0, 0, loc).Unix(), 1, nil
}

func parseSwitch(value string) (bool, error) {
	switch strings.ToLower(value) {
	case "on", "yes", "true", "1":
		return true, nil
	case "off", "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("ожидается on или off, получено %s", value)
	}
}

func (b *Bot) handlePolicySet(chatID int64, assessment string, args []string) error {
	policy, err := b.service.Store.GetPolicy(assessment)
	if err != nil {
		return fmt.Errorf("ошибка проверки существования теста %s: %v", assessment, err)
	}
	action := "обновлены"
	if policy == nil {
		policy = b.service.NewPolicy(assessment)
		action = "добавлены"
	}

	if err := applyPolicyArgs(policy, args, b.service.Grader.Calendar().Location()); err != nil {
		return err
	}

	if err := b.service.SavePolicy(policy); err != nil {
		return fmt.Errorf("ошибка сохранения: %v", err)
	}

	return b.sendMessage(chatID, fmt.Sprintf("✅ Настройки теста %s %s:\n%s", assessment, action, b.formatPolicy(policy)))
}

func (b *Bot) handlePolicyShow(chatID int64, assessment string) error {
	policy, err := b.service.GetPolicy(assessment)
	if err != nil {
		return err
	}
	return b.sendMessage(chatID, fmt.Sprintf("Настройки теста %s:\n%s", assessment, b.formatPolicy(policy)))
}

func (b *Bot) handlePolicyList(chatID int64) error {
	policies, err := b.service.Store.ListPolicies()
	if err != nil {
		return fmt.Errorf("ошибка получения настроек: %v", err)
	}
	if len(policies) == 0 {
		return b.sendMessage(chatID, "Настроенных тестов пока нет")
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("Настроенные тесты (%d):\n", len(policies)))
	for _, p := range policies {
		due := "не задан"
		if p.Active() {
			due = b.service.FormatTime(p.DueAt)
		}
		penalty := "без штрафа"
		if p.PenaltyEnabled {
			penalty = fmt.Sprintf("%d%%/день, до %d%%", p.DailyPercentage, models.NormalizedMax(p.MaxPercentage))
		}
		text.WriteString(fmt.Sprintf("👉🏻 %s: %s, %s\n", p.AssessmentID, due, penalty))
	}
	return b.sendMessage(chatID, text.String())
}

func onOff(v bool) string {
	if v {
		return "вкл"
	}
	return "выкл"
}

func (b *Bot) formatPolicy(p *models.AssessmentPolicy) string {
	due := "не задан"
	if p.Active() {
		due = b.service.FormatTime(p.DueAt)
	}
	return fmt.Sprintf("📅 Дедлайн: %s\n"+
		"Штраф: %s, %d%% в рабочий день, максимум %d%%\n"+
		"Запрет пересдачи: %s",
		due,
		onOff(p.PenaltyEnabled),
		p.DailyPercentage,
		models.NormalizedMax(p.MaxPercentage),
		onOff(p.PreventResubmission),
	)
}

func (b *Bot) handleLate(msg *tgbotapi.Message) error {
	assessment, err := b.resolveAssessment(msg.Chat.ID, strings.Fields(msg.CommandArguments()))
	if err != nil {
		return err
	}

	rows, err := b.service.LatenessReport(assessment)
	if err != nil {
		return fmt.Errorf("ошибка построения отчёта: %v", err)
	}

	var text strings.Builder
	late := 0
	for _, row := range rows {
		if row.Late != "Yes" {
			continue
		}
		late++
		text.WriteString(fmt.Sprintf("👉🏻 %s (%s): сдано %s, штраф %d%%\n",
			row.UserID,
			row.SubmissionID,
			b.service.FormatTime(row.FinishedAt),
			row.Penalty,
		))
	}

	if late == 0 {
		return b.sendMessage(msg.Chat.ID, fmt.Sprintf("В тесте %s опоздавших нет", assessment))
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("Опоздания в тесте %s (%d из %d):\n\n%s", assessment, late, len(rows), text.String()))
}

func (b *Bot) handlePenalty(msg *tgbotapi.Message) error {
	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return fmt.Errorf("укажи сдачу: /penalty <submission>")
	}

	late, err := b.service.IsLate(args[0])
	if err != nil {
		return err
	}
	if !late {
		return b.sendMessage(msg.Chat.ID, fmt.Sprintf("Сдача %s без опоздания", args[0]))
	}

	penalty, err := b.service.Penalty(args[0])
	if err != nil {
		return err
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("Сдача %s с опозданием, штраф %d%%", args[0], penalty))
}

func (b *Bot) handleRegrade(msg *tgbotapi.Message) error {
	assessment, err := b.resolveAssessment(msg.Chat.ID, strings.Fields(msg.CommandArguments()))
	if err != nil {
		return err
	}

	outcomes, err := b.service.RegradeAssessment(assessment)
	if err != nil {
		return fmt.Errorf("ошибка пересчёта: %v", err)
	}

	late := 0
	for _, o := range outcomes {
		if o.Late {
			late++
		}
	}
	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Пересчитано сдач: %d, с опозданием: %d", len(outcomes), late))
}

func (b *Bot) handleBind(msg *tgbotapi.Message) error {
	if b.tokens == nil {
		return fmt.Errorf("redis не настроен")
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) < 1 {
		return fmt.Errorf("укажи тест: /bind quiz1")
	}

	binding := &models.ChatAssessmentBinding{
		Assessment:  args[0],
		Comment:     strings.Join(args[1:], " "),
		BindingTime: time.Now().UTC(),
		BoundBy:     msg.From.ID,
	}
	if err := b.tokens.BindChat(context.Background(), msg.Chat.ID, binding); err != nil {
		return fmt.Errorf("ошибка сохранения: %v", err)
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Тест %s привязан к чату", binding.Assessment))
}

func (b *Bot) handleLink(msg *tgbotapi.Message) error {
	if b.tokens == nil {
		return fmt.Errorf("redis не настроен")
	}

	args := strings.Fields(msg.CommandArguments())
	if len(args) < 2 {
		return fmt.Errorf("использование: /link <telegram> <user>")
	}

	tgUsername := strings.TrimPrefix(args[0], "@")
	if err := b.tokens.SaveUserTelegramMapping(context.Background(), tgUsername, args[1]); err != nil {
		return fmt.Errorf("ошибка сохранения: %v", err)
	}

	return b.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ @%s теперь %s", tgUsername, args[1]))
}

func (b *Bot) handleHolidays(msg *tgbotapi.Message) error {
	cal := b.service.Grader.Calendar()
	dates := cal.Holidays().Sorted()
	if len(dates) == 0 {
		return b.sendMessage(msg.Chat.ID, fmt.Sprintf("Праздники не заданы, выходные: суббота и воскресенье (%s)", cal.Location()))
	}

	var text strings.Builder
	text.WriteString(fmt.Sprintf("Праздники (%s):\n", cal.Location()))
	for _, d := range dates {
		text.WriteString(fmt.Sprintf("📅 %s\n", d))
	}
	return b.sendMessage(msg.Chat.ID, text.String())
}

func (b *Bot) sendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	_, err := b.api.Send(msg)
	return err
}
